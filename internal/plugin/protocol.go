package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"synx/internal/model"
)

// pluginRequest is the JSON message written to a subprocess plugin's
// stdin: the path being validated (for diagnostics/location context)
// and the file's content.
type pluginRequest struct {
	Path    string `json:"path"`
	Content []byte `json:"content"` // base64-encoded by encoding/json
}

// pluginResponse is the JSON message a subprocess plugin writes to its
// stdout: either a clean result (Success/Failure with issues) or an
// explicit error string, which the executor surfaces as InternalError.
type pluginResponse struct {
	Success bool          `json:"success"`
	Issues  []model.Issue `json:"issues,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func encodeRequest(path string, content []byte) (*bytes.Reader, error) {
	data, err := json.Marshal(pluginRequest{Path: path, Content: content})
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func decodeResponse(pluginID string, data []byte) (model.ValidationOutcome, error) {
	var resp pluginResponse
	if err := json.Unmarshal(bytes.TrimSpace(data), &resp); err != nil {
		return model.ValidationOutcome{}, fmt.Errorf("decode plugin response: %w", err)
	}
	if resp.Error != "" {
		return model.InternalError(pluginID, resp.Error), nil
	}
	if resp.Success {
		return model.Success(pluginID, 0), nil
	}
	return model.Failure(pluginID, resp.Issues, 0), nil
}
