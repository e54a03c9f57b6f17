package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/supplai-io/supplai/internal/models"
)

// ApiError is returned for responses with an unexpected status code.
type ApiError struct {
	StatusCode int
	Model      models.BaseError
	Field      string
	Reason     string
}

func (e *ApiError) Error() string {
	message := fmt.Sprintf("error: %s", e.Model.Error)
	if e.Field != "" {
		message += fmt.Sprintf(", field: %s", e.Field)
	}
	if e.Reason != "" {
		message += fmt.Sprintf(", reason: %s", e.Reason)
	}
	return message + fmt.Sprintf(", status: %d", e.StatusCode)
}

func newApiError(resp *http.Response) error {
	apiErr := &ApiError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("error: %w, status: %d", err, resp.StatusCode)
	}
	var model models.ValidationError
	if err := json.Unmarshal(body, &model); err != nil || model.Error == "" {
		apiErr.Model.Error = resp.Status
	} else {
		apiErr.Model = model.BaseError
		apiErr.Field = model.Field
		apiErr.Reason = model.Reason
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrNotSignedIn, apiErr)
	}
	return apiErr
}
