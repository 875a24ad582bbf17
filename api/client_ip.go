package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	iam "github.com/goliatone/go-iam"
)

func clientIPFromFiber(c *fiber.Ctx) string {
	header := http.Header{}
	for _, name := range []string{iam.HeaderForwardedFor, iam.HeaderRealIP} {
		if value := c.Get(name); value != "" {
			header.Add(name, value)
		}
	}

	var peer string
	if ip := c.Context().RemoteIP(); ip != nil && !ip.IsUnspecified() {
		peer = ip.String()
	}

	return iam.ClientIP(header, peer)
}
