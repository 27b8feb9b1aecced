package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

var pictureContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type MediaHandler struct {
	bucketName string
}

func NewMediaHandler(bucketName string) *MediaHandler {
	return &MediaHandler{bucketName: bucketName}
}

type uploadURLRequest struct {
	ContentType string `json:"contentType"`
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
}

// PictureUploadURL hands the client a short-lived signed PUT URL for a
// profile picture. The client uploads directly and then PATCHes the public
// URL back into its profile.
func (h *MediaHandler) PictureUploadURL(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	extension, ok := pictureContentTypes[req.ContentType]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unsupported content type")
		return
	}

	objectName := fmt.Sprintf("avatars/%s/%s%s", u.ID, uuid.New().String(), extension)
	signedURL, err := h.generateSignedURL(objectName, req.ContentType)
	if err != nil {
		log.Printf("Failed to generate signed URL for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate upload URL")
		return
	}

	writeJSON(w, uploadURLResponse{
		UploadURL: signedURL,
		PublicURL: fmt.Sprintf("https://storage.googleapis.com/%s/%s", h.bucketName, objectName),
	})
}

func (h *MediaHandler) generateSignedURL(objectName, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("client connection error: %w", err)
	}
	defer client.Close()

	bucket := client.Bucket(h.bucketName)
	url, err := bucket.SignedURL(objectName, &storage.SignedURLOptions{
		Expires:     time.Now().Add(90 * time.Second),
		Method:      "PUT",
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}
