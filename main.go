package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpreset/internal/app"
)

// @title           otpreset API
// @version         1.0
// @description     otpreset resets local account passwords after a TOTP code check.
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @securityDefinitions.apikey  AdminKey
// @in header
// @name X-Admin-Key
func main() {
	application := app.New()    // Initialize the application
	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Stop(ctx) // Stop the application gracefully
}
