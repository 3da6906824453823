package api

import (
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

type DocumentHandler struct {
	sourceDir string
}

func NewDocumentHandler(sourceDir string) *DocumentHandler {
	return &DocumentHandler{
		sourceDir: sourceDir,
	}
}

// HandleUpload drops an uploaded requirement document into the loader's
// source directory; the loader service picks it up, chunks it and stores
// the chunks for generation.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	path := filepath.Join(h.sourceDir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, path); err != nil {
		return err
	}
	fmt.Printf("[UPLOAD] File successfully saved to: %s\n", path)

	return c.JSON(fiber.Map{"result": "ok", "path": path})
}
