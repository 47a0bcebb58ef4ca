package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
)

// maxErrorBody bounds how much of a non-JSON error body ends up in an error.
const maxErrorBody = 512

// NewJSONRequest builds a POST request carrying body as JSON.
func NewJSONRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapParse("json", "request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, errors.WrapResource("create", "request", "POST "+url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// FileUpload is a file sent as one part of a multipart request.
type FileUpload struct {
	Field    string
	FileName string
	Body     io.Reader
}

// NewMultipartRequest builds a POST request with form fields and a file
// part. The file is streamed, not buffered.
func NewMultipartRequest(ctx context.Context, url string, fields map[string]string, file FileUpload) (*http.Request, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, fields, file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		_ = pr.Close()
		return nil, errors.WrapResource("create", "request", "POST "+url, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, file FileUpload) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return err
		}
	}
	if file.Body != nil {
		part, err := mw.CreateFormFile(file.Field, file.FileName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file.Body); err != nil {
			return err
		}
	}
	return mw.Close()
}

// DecodeResponse decodes a JSON response into the target structure. Error
// statuses with a JSON body are decoded too, so callers can read the
// catalog's own error report; error statuses without one become APIErrors.
func DecodeResponse(action string, resp *http.Response, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Str("action", action).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		if resp.StatusCode >= http.StatusMultipleChoices {
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			return &errors.APIError{
				Action:     action,
				StatusCode: resp.StatusCode,
				Message:    string(bytes.TrimSpace(body)),
			}
		}
		return errors.WrapParse("json", action+" response", err)
	}
	return nil
}
