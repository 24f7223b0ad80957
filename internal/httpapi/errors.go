package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
)

// writeJSON encodes v as the response body with status, the way the
// teacher's cmd/gateway handlers render success responses.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// jsonError renders a plain string error, for request-shape failures caught
// before any domain error exists yet (bad JSON, missing path vars).
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError renders a domain error as JSON, mapping its GatewayError kind
// to an HTTP status the way a REST front door over the manager's
// Identity/State/Shape/Capability/Library/Transient taxonomy should.
func writeError(w http.ResponseWriter, err error) {
	gerr := gwerrors.As(err)
	if gerr == nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusFor(gerr), map[string]interface{}{
		"code":    gerr.Code,
		"message": gerr.Message,
		"details": gerr.Details,
	})
}

func statusFor(gerr *gwerrors.GatewayError) int {
	switch gerr.Code {
	case gwerrors.NodeNotExist, gwerrors.GroupNotExist, gwerrors.TagNotExist,
		gwerrors.PluginNotFound, gwerrors.TemplateNotFound:
		return http.StatusNotFound
	case gwerrors.NodeExist, gwerrors.GroupExist, gwerrors.TagNameConflict,
		gwerrors.PluginNameConflict, gwerrors.TemplateExist:
		return http.StatusConflict
	case gwerrors.NodeNotReady, gwerrors.NodeIsRunning, gwerrors.NodeIsStopped, gwerrors.NodeNotRunning:
		return http.StatusConflict
	case gwerrors.NodeNameTooLong, gwerrors.GroupNameTooLong, gwerrors.TagNameTooLong,
		gwerrors.TagAddressTooLong, gwerrors.TagDescriptionTooLong, gwerrors.GroupParameterInvalid,
		gwerrors.NodeSettingInvalid, gwerrors.NodeSettingNotFound, gwerrors.ParamIsWrong,
		gwerrors.BodyIsWrong, gwerrors.InvalidCID:
		return http.StatusBadRequest
	case gwerrors.PluginNotSupportTemplate, gwerrors.TagNotAllowWrite, gwerrors.PluginReadFailure,
		gwerrors.TagExpired, gwerrors.NodeNotAllowSubscribe, gwerrors.NodeNotAllowMap,
		gwerrors.GroupAlreadySubscribed, gwerrors.GroupNotSubscribed, gwerrors.SubscribeFailure:
		return http.StatusUnprocessableEntity
	case gwerrors.IsBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
