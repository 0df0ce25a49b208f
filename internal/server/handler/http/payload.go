package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rmadden/backroom/internal/errs"
	"github.com/rmadden/backroom/internal/service"
)

// multipartMemory is the in-memory buffer handed to ParseMultipartForm;
// larger parts spill to disk. Sized above the raw image limit so the size
// check in the service sees the whole upload.
const multipartMemory = 16 << 20

// resolvePayload normalizes a thread/reply request body into a PostInput.
// A multipart body carries subject, content, and an optional image part; any
// other content type is decoded as JSON {subject, content}. withSubject is
// false for replies, whose bodies have no subject field.
func resolvePayload(r *http.Request, withSubject bool) (service.PostInput, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "multipart/") {
		return resolveMultipart(r, withSubject)
	}
	return resolveJSON(r, withSubject)
}

func resolveJSON(r *http.Request, withSubject bool) (service.PostInput, error) {
	var body struct {
		Subject string `json:"subject"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.PostInput{}, errs.Wrap(errs.ErrBadRequest, "Error parsing JSON data")
	}
	input := service.PostInput{Content: body.Content}
	if withSubject {
		input.Subject = body.Subject
	}
	return input, nil
}

func resolveMultipart(r *http.Request, withSubject bool) (service.PostInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return service.PostInput{}, errs.Wrap(errs.ErrBadRequest, "Error parsing form data")
	}

	input := service.PostInput{Content: r.FormValue("content")}
	if withSubject {
		input.Subject = r.FormValue("subject")
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return input, nil
	case err != nil:
		return service.PostInput{}, errs.Wrap(errs.ErrBadRequest, "Error parsing form data")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.PostInput{}, errs.Wrap(errs.ErrBadRequest, "Error processing image")
	}
	if len(data) == 0 {
		// An empty file part counts as no image.
		return input, nil
	}

	input.Image = &service.ImageUpload{
		Data: data,
		MIME: header.Header.Get("Content-Type"),
	}
	return input, nil
}
