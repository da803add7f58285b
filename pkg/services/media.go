package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

// MediaService streams upload bytes to the hosted image service and returns
// the stable URL it assigns. Only that URL is ever persisted.
type MediaService interface {
	Upload(ctx context.Context, reqID int64, filename string, contentType string, r io.Reader) (model.Attachment, error)
}

type mediaService struct {
	logger    *slog.Logger
	client    *http.Client
	uploadURL string
}

func NewMediaService(logger *slog.Logger, uploadURL string) MediaService {
	return &mediaService{
		logger:    logger,
		client:    &http.Client{Timeout: 30 * time.Second},
		uploadURL: uploadURL,
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (m *mediaService) Upload(ctx context.Context, reqID int64, filename string, contentType string, r io.Reader) (model.Attachment, error) {
	logger := m.logger
	logger.Debug("entering Upload", "req_id", reqID, "filename", filename)

	objectName := uuid.New().String() + filepath.Ext(filename)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", objectName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.uploadURL, pr)
	if err != nil {
		return model.Attachment{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		logger.Error("error uploading file to media service", "msg", err.Error())
		return model.Attachment{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Attachment{}, fmt.Errorf("media service returned status %d: %s", resp.StatusCode, string(body))
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return model.Attachment{}, fmt.Errorf("error parsing media service response: %s", err.Error())
	}
	if ur.URL == "" {
		return model.Attachment{}, fmt.Errorf("media service response is missing the object url")
	}

	return model.Attachment{
		Filename: filename,
		URL:      ur.URL,
		Type:     contentType,
	}, nil
}
