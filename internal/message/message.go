// Package message defines the typed envelope every component posts to the
// manager and every adapter receives from it, grounded on the teacher's
// Android-inspired Intent model (system/framework/intent.go): a typed
// discriminator plus an addressed sender/receiver pair, routed by
// internal/message.Router the way framework.IntentRouter resolves and
// dispatches an Intent.
package message

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Type is the typed discriminator carried by every envelope, abbreviated
// from spec.md §6's message family list.
type Type int

const (
	TypeRespError Type = iota

	TypeReqReadGroup
	TypeRespReadGroup
	TypeReqWriteTag
	TypeReqWriteTags
	TypeReqWriteGTags

	TypeReqSubscribeGroup
	TypeReqUnsubscribeGroup
	TypeReqUpdateSubscribeGroup
	TypeReqSubscribeGroups
	TypeReqGetSubscribeGroup
	TypeRespGetSubscribeGroup

	TypeReqNodeInit
	TypeReqNodeUninit
	TypeRespNodeUninit
	TypeReqAddNode
	TypeReqUpdateNode
	TypeReqDelNode
	TypeReqGetNode
	TypeRespGetNode
	TypeReqNodeSetting
	TypeReqGetNodeSetting
	TypeRespGetNodeSetting
	TypeReqGetNodeState
	TypeRespGetNodeState
	TypeReqNodeCtl
	TypeReqNodeRename
	TypeRespNodeRename

	TypeReqAddGroup
	TypeReqDelGroup
	TypeReqUpdateGroup
	TypeReqGetGroup
	TypeRespGetGroup

	TypeReqAddTag
	TypeRespAddTag
	TypeReqAddGTag
	TypeRespAddGTag
	TypeReqDelTag
	TypeReqUpdateTag
	TypeRespUpdateTag
	TypeReqGetTag
	TypeRespGetTag

	TypeReqAddPlugin
	TypeReqDelPlugin
	TypeReqUpdatePlugin
	TypeReqGetPlugin
	TypeRespGetPlugin

	TypeReqAddTemplate
	TypeReqDelTemplate
	TypeReqGetTemplate
	TypeRespGetTemplate
	TypeReqInstTemplate

	TypeTransData
	TypeNodesState
	TypeNodeDeleted

	// TypeNotifySubUpdate tells a subscribed app that the tag set of one
	// of its (driver, group) subscriptions changed shape and it should
	// resync, per spec.md §4.8's stateful-request dispatch rule.
	TypeNotifySubUpdate

	// TypeRespGeneric answers a Callbacks.Response/ResponseTo call whose
	// original request type the plugin does not carry forward itself.
	TypeRespGeneric
)

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

var typeNames = map[Type]string{
	TypeRespError:               "RESP_ERROR",
	TypeReqReadGroup:            "REQ_READ_GROUP",
	TypeRespReadGroup:           "RESP_READ_GROUP",
	TypeReqWriteTag:             "REQ_WRITE_TAG",
	TypeReqWriteTags:            "REQ_WRITE_TAGS",
	TypeReqWriteGTags:           "REQ_WRITE_GTAGS",
	TypeReqSubscribeGroup:       "REQ_SUBSCRIBE_GROUP",
	TypeReqUnsubscribeGroup:     "REQ_UNSUBSCRIBE_GROUP",
	TypeReqUpdateSubscribeGroup: "REQ_UPDATE_SUBSCRIBE_GROUP",
	TypeReqSubscribeGroups:      "REQ_SUBSCRIBE_GROUPS",
	TypeReqGetSubscribeGroup:    "REQ_GET_SUBSCRIBE_GROUP",
	TypeRespGetSubscribeGroup:   "RESP_GET_SUBSCRIBE_GROUP",
	TypeReqNodeInit:             "REQ_NODE_INIT",
	TypeReqNodeUninit:           "REQ_NODE_UNINIT",
	TypeRespNodeUninit:          "RESP_NODE_UNINIT",
	TypeReqAddNode:              "REQ_ADD_NODE",
	TypeReqUpdateNode:           "REQ_UPDATE_NODE",
	TypeReqDelNode:              "REQ_DEL_NODE",
	TypeReqGetNode:              "REQ_GET_NODE",
	TypeRespGetNode:             "RESP_GET_NODE",
	TypeReqNodeSetting:          "REQ_NODE_SETTING",
	TypeReqGetNodeSetting:       "REQ_GET_NODE_SETTING",
	TypeRespGetNodeSetting:      "RESP_GET_NODE_SETTING",
	TypeReqGetNodeState:         "REQ_GET_NODE_STATE",
	TypeRespGetNodeState:        "RESP_GET_NODE_STATE",
	TypeReqNodeCtl:              "REQ_NODE_CTL",
	TypeReqNodeRename:           "REQ_NODE_RENAME",
	TypeRespNodeRename:          "RESP_NODE_RENAME",
	TypeReqAddGroup:             "REQ_ADD_GROUP",
	TypeReqDelGroup:             "REQ_DEL_GROUP",
	TypeReqUpdateGroup:          "REQ_UPDATE_GROUP",
	TypeReqGetGroup:             "REQ_GET_GROUP",
	TypeRespGetGroup:            "RESP_GET_GROUP",
	TypeReqAddTag:               "REQ_ADD_TAG",
	TypeRespAddTag:              "RESP_ADD_TAG",
	TypeReqAddGTag:              "REQ_ADD_GTAG",
	TypeRespAddGTag:             "RESP_ADD_GTAG",
	TypeReqDelTag:               "REQ_DEL_TAG",
	TypeReqUpdateTag:            "REQ_UPDATE_TAG",
	TypeRespUpdateTag:           "RESP_UPDATE_TAG",
	TypeReqGetTag:               "REQ_GET_TAG",
	TypeRespGetTag:              "RESP_GET_TAG",
	TypeReqAddPlugin:            "REQ_ADD_PLUGIN",
	TypeReqDelPlugin:            "REQ_DEL_PLUGIN",
	TypeReqUpdatePlugin:         "REQ_UPDATE_PLUGIN",
	TypeReqGetPlugin:            "REQ_GET_PLUGIN",
	TypeRespGetPlugin:           "RESP_GET_PLUGIN",
	TypeReqAddTemplate:          "REQ_ADD_TEMPLATE",
	TypeReqDelTemplate:          "REQ_DEL_TEMPLATE",
	TypeReqGetTemplate:          "REQ_GET_TEMPLATE",
	TypeRespGetTemplate:         "RESP_GET_TEMPLATE",
	TypeReqInstTemplate:         "REQ_INST_TEMPLATE",
	TypeTransData:               "REQRESP_TRANS_DATA",
	TypeNodesState:              "REQRESP_NODES_STATE",
	TypeNodeDeleted:             "REQRESP_NODE_DELETED",
	TypeNotifySubUpdate:         "NOTIFY_SUB_UPDATE",
	TypeRespGeneric:             "RESP_GENERIC",
}

// Head is the fixed envelope header carried by every message: type,
// request ID, sender and receiver. It has no total-length field; the body's
// size is only known from len(Envelope.Body).
type Head struct {
	Type      Type
	RequestID string
	Sender    string
	Receiver  string // empty means broadcast
}

// Envelope is one message posted to the manager or delivered to an
// adapter's inbound channel. Grounded on framework.Intent: Receiver plays
// the role of Intent.Component (explicit target), and an empty Receiver
// plays the role of an implicit/broadcast intent resolved by action alone.
type Envelope struct {
	Head Head
	Body json.RawMessage
}

// New constructs an explicit envelope addressed to receiver, stamping a
// fresh request ID.
func New(typ Type, sender, receiver string, body json.RawMessage) *Envelope {
	return &Envelope{
		Head: Head{Type: typ, RequestID: uuid.NewString(), Sender: sender, Receiver: receiver},
		Body: body,
	}
}

// NewBroadcast constructs an envelope with no specific receiver, resolved
// by the router to every registered monitor node. Every broadcast type,
// license broadcasts included, takes that same path; none is delivered to
// every driver.
func NewBroadcast(typ Type, sender string, body json.RawMessage) *Envelope {
	return &Envelope{
		Head: Head{Type: typ, RequestID: uuid.NewString(), Sender: sender},
		Body: body,
	}
}

// IsBroadcast reports whether this envelope has no explicit receiver.
func (e *Envelope) IsBroadcast() bool {
	return e.Head.Receiver == ""
}

// Reply constructs a response envelope addressed back to this envelope's
// sender, carrying the same request ID so the original caller can
// correlate it.
func (e *Envelope) Reply(typ Type, from string, body json.RawMessage) *Envelope {
	return &Envelope{
		Head: Head{Type: typ, RequestID: e.Head.RequestID, Sender: from, Receiver: e.Head.Sender},
		Body: body,
	}
}
