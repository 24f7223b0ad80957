package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/subscription"
)

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := a.mgr.HealthStatus()
	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	details := a.mgr.HealthDetails()
	details["status"] = status
	writeJSON(w, code, details)
}

// decodeBody decodes the request body into v, reporting a BODY_IS_WRONG
// GatewayError on failure so the caller gets the same error envelope as
// every other domain failure.
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return gwerrors.New(gwerrors.BodyIsWrong, "malformed request body").WithDetails("error", err.Error())
	}
	return nil
}

// -- nodes --

func (a *api) handleListNodes(w http.ResponseWriter, r *http.Request) {
	var filter *model.NodeType
	if t := r.URL.Query().Get("type"); t != "" {
		switch t {
		case "driver":
			v := model.NodeTypeDriver
			filter = &v
		case "app":
			v := model.NodeTypeApp
			filter = &v
		}
	}
	writeJSON(w, http.StatusOK, a.mgr.GetNodes(filter))
}

type addNodeRequest struct {
	Name      string `json:"name"`
	Plugin    string `json:"plugin"`
	IsMonitor bool   `json:"is_monitor"`
}

func (a *api) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.AddNode(r.Context(), req.Name, req.Plugin, req.IsMonitor); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := a.mgr.GetNode(mux.Vars(r)["node"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (a *api) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := a.mgr.DelNode(r.Context(), mux.Vars(r)["node"]); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (a *api) handleRenameNode(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.RenameNode(r.Context(), mux.Vars(r)["node"], req.Name); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleNodeSetting(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		a.fail(w, r, gwerrors.New(gwerrors.NodeSettingInvalid, "malformed setting body").WithDetails("error", err.Error()))
		return
	}
	if err := a.mgr.NodeSetting(r.Context(), mux.Vars(r)["node"], raw); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleGetNodeSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := a.mgr.GetNodeSetting(mux.Vars(r)["node"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(setting) == 0 {
		_, _ = w.Write([]byte("null"))
		return
	}
	_, _ = w.Write(setting)
}

type nodeCtlRequest struct {
	Action string `json:"action"`
}

func (a *api) handleNodeCtl(w http.ResponseWriter, r *http.Request) {
	var req nodeCtlRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.NodeCtl(r.Context(), mux.Vars(r)["node"], req.Action); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleGetNodeState(w http.ResponseWriter, r *http.Request) {
	state, link, err := a.mgr.GetNodeState(mux.Vars(r)["node"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state.String(), "link": link.String()})
}

// -- groups --

func (a *api) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.mgr.GetGroups(mux.Vars(r)["node"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

type groupRequest struct {
	Name           string `json:"name"`
	IntervalMillis int64  `json:"interval_millis"`
}

func (a *api) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.CreateGroup(r.Context(), mux.Vars(r)["node"], req.Name, req.IntervalMillis); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	group, err := a.mgr.GetGroup(vars["node"], vars["group"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (a *api) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := a.mgr.UpdateGroup(r.Context(), vars["node"], vars["group"], req.IntervalMillis); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.mgr.DelGroup(r.Context(), vars["node"], vars["group"]); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *api) handleReadGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	frame, err := a.mgr.ReadGroup(vars["node"], vars["group"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// -- tags --

type tagRequest struct {
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Description string          `json:"description"`
	Type        model.TagType   `json:"type"`
	Attribute   model.TagAttribute `json:"attribute"`
	Precision   *int            `json:"precision,omitempty"`
	Decimal     *float64        `json:"decimal,omitempty"`
}

func (req tagRequest) toDef() *model.TagDef {
	return &model.TagDef{
		Name:        req.Name,
		Address:     req.Address,
		Description: req.Description,
		Type:        req.Type,
		Attribute:   req.Attribute,
		Precision:   req.Precision,
		Decimal:     req.Decimal,
	}
}

func (a *api) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := a.mgr.AddTag(r.Context(), vars["node"], vars["group"], req.toDef()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleGetTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tag, err := a.mgr.GetTag(vars["node"], vars["group"], vars["tag"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (a *api) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	req.Name = vars["tag"]
	if err := a.mgr.UpdateTag(r.Context(), vars["node"], vars["group"], req.toDef()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.mgr.DelTag(r.Context(), vars["node"], vars["group"], vars["tag"]); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type writeTagRequest struct {
	ReqID string      `json:"req_id"`
	Value interface{} `json:"value"`
}

func (a *api) handleWriteTag(w http.ResponseWriter, r *http.Request) {
	var req writeTagRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := a.mgr.WriteTag(r.Context(), vars["node"], req.ReqID, vars["group"], vars["tag"], req.Value); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type writeTagsRequest struct {
	ReqID  string                 `json:"req_id"`
	Values map[string]interface{} `json:"values"`
}

func (a *api) handleWriteTags(w http.ResponseWriter, r *http.Request) {
	var req writeTagsRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	failures, err := a.mgr.WriteTags(r.Context(), vars["node"], req.ReqID, vars["group"], req.Values)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	errStrings := make(map[string]string, len(failures))
	for tag, ferr := range failures {
		errStrings[tag] = ferr.Error()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"failures": errStrings})
}

// -- subscriptions --

type subscribeRequest struct {
	Driver     string                  `json:"driver"`
	Group      string                  `json:"group"`
	App        string                  `json:"app"`
	Params     json.RawMessage         `json:"params"`
	StaticTags []subscription.StaticTag `json:"static_tags"`
}

func (a *api) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.Subscribe(r.Context(), req.Driver, req.Group, req.App, req.Params, req.StaticTags); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.Unsubscribe(r.Context(), req.Driver, req.Group, req.App); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *api) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.UpdateSubscribeGroup(r.Context(), req.Driver, req.Group, req.App, req.Params, req.StaticTags); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	entries := a.mgr.GetSubscribeGroups(mux.Vars(r)["app"])
	writeJSON(w, http.StatusOK, entries)
}

// -- templates --

func (a *api) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.mgr.GetTemplates())
}

type addTemplateRequest struct {
	Name   string `json:"name"`
	Plugin string `json:"plugin"`
}

func (a *api) handleAddTemplate(w http.ResponseWriter, r *http.Request) {
	var req addTemplateRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.AddTemplate(req.Plugin, req.Name); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := a.mgr.GetTemplate(mux.Vars(r)["template"])
	if !ok {
		a.fail(w, r, gwerrors.NotFound("template", mux.Vars(r)["template"]))
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (a *api) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := a.mgr.DelTemplate(mux.Vars(r)["template"]); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type instantiateRequest struct {
	NewNodeName string `json:"new_node_name"`
}

func (a *api) handleInstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	var req instantiateRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.mgr.InstTemplate(r.Context(), mux.Vars(r)["template"], req.NewNodeName); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleAddTemplateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	def := &model.GroupDef{Name: req.Name, Interval: req.IntervalMillis}
	if err := a.mgr.AddTemplateGroup(mux.Vars(r)["template"], def); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleUpdateTemplateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := a.mgr.UpdateTemplateGroup(vars["template"], vars["group"], req.IntervalMillis); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleDeleteTemplateGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.mgr.DelTemplateGroup(vars["template"], vars["group"]); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *api) handleAddTemplateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := a.mgr.AddTemplateTag(r.Context(), vars["template"], vars["group"], req.toDef()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (a *api) handleUpdateTemplateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	req.Name = vars["tag"]
	if err := a.mgr.UpdateTemplateTag(r.Context(), vars["template"], vars["group"], req.toDef()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *api) handleDeleteTemplateTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.mgr.DelTemplateTag(vars["template"], vars["group"], vars["tag"]); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
