package v1

import (
	"bytes"
	_ "embed"
	"log/slog"
	"text/template"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

//go:embed sdk.js
var sdkSource string

var sdkTmpl = template.Must(template.New("sdk.js").Parse(sdkSource))

// GetSDKAction serves the tracking snippet with the server's base URL baked
// in. Responses carry a content-derived ETag so browsers revalidate with a
// cheap 304 instead of refetching the script on every page load.
func GetSDKAction(ctx *cartridge.Context) error {
	var buf bytes.Buffer
	if err := sdkTmpl.Execute(&buf, map[string]string{"BaseURL": ctx.BaseURL()}); err != nil {
		ctx.Logger.Error("Failed to render tracking script", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	script := buf.Bytes()
	etag := generateETag(script)

	if ctx.Get("If-None-Match") == etag {
		return ctx.Status(fiber.StatusNotModified).Send(nil)
	}

	ctx.Set("Content-Type", "application/javascript")
	ctx.Set("Cache-Control", "public, max-age=3600")
	ctx.Set("ETag", etag)
	// The snippet is loaded cross-site from every tracked page.
	ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")
	return ctx.Send(script)
}
