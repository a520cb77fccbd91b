package flexmsg

import (
	"strconv"

	"github.com/arloliu/go-flexgui/address"
)

// MessageType classifies a decoded document.
type MessageType uint8

const (
	UnknownType MessageType = iota
	DataUpdateType
	DataUpdateAckType
	CommandResultType
	NotificationType
)

func (t MessageType) String() string {
	switch t {
	case DataUpdateType:
		return "dataUpdate"
	case DataUpdateAckType:
		return "dataUpdateAck"
	case CommandResultType:
		return "commandResult"
	case NotificationType:
		return "notification"
	default:
		return "unknown"
	}
}

// Message is a decoded flex.gui document.
type Message interface {
	Type() MessageType
}

// Keyed is a Message that answers a request, matched by its correlation key.
type Keyed interface {
	Message
	Key() string
}

// DataUpdate carries the value of a read or pushed signal.
type DataUpdate struct {
	Unit      int
	Group     string
	RequestID string
	SubID     int
	Count     int
	Value     Value
}

func (m *DataUpdate) Type() MessageType { return DataUpdateType }

// Key returns the correlation key, equal to address.Resolved.Key of the request.
func (m *DataUpdate) Key() string {
	return address.Key(m.Unit, m.Group, m.RequestID, m.SubID, m.Count)
}

// DataUpdateAck acknowledges an update request.
type DataUpdateAck struct {
	SeqID uint64
}

func (m *DataUpdateAck) Type() MessageType { return DataUpdateAckType }

func (m *DataUpdateAck) Key() string { return UpdateKey(m.SeqID) }

// ResultSuccess is the result code of a successful command.
const ResultSuccess = 1

// CommandResult is the controller's answer to a command.
type CommandResult struct {
	Name       string
	SeqID      uint64
	Result     int
	ResultText string
}

func (m *CommandResult) Type() MessageType { return CommandResultType }

func (m *CommandResult) Key() string { return CommandKey(m.Name, m.SeqID) }

// Err returns a *CommandError unless the result code is ResultSuccess.
func (m *CommandResult) Err() error {
	if m.Result == ResultSuccess {
		return nil
	}

	return &CommandError{Name: m.Name, SeqID: m.SeqID, Result: m.Result, Text: m.ResultText}
}

// Notification is an asynchronous controller event.
type Notification struct {
	Code     int
	MechID   *int
	Axis     *int
	Line     *int
	Program  *string
	Message  string
	Content  string
	Measures string
}

func (m *Notification) Type() MessageType { return NotificationType }

// LogFields returns the notification as logger key-value pairs.
func (m *Notification) LogFields() []any {
	fields := []any{"code", m.Code, "message", m.Message}
	if m.MechID != nil {
		fields = append(fields, "mech", *m.MechID)
	}
	if m.Axis != nil {
		fields = append(fields, "axis", *m.Axis)
	}
	if m.Line != nil {
		fields = append(fields, "line", *m.Line)
	}
	if m.Program != nil {
		fields = append(fields, "program", *m.Program)
	}
	if m.Content != "" {
		fields = append(fields, "content", m.Content)
	}
	if m.Measures != "" {
		fields = append(fields, "measures", m.Measures)
	}

	return fields
}

// Unknown is a document matching none of the known message shapes.
type Unknown struct {
	Root string
}

func (m *Unknown) Type() MessageType { return UnknownType }

// UpdateKey returns the correlation key of an update request.
func UpdateKey(seqID uint64) string {
	return "seqid:" + strconv.FormatUint(seqID, 10) + ";"
}

// CommandKey returns the correlation key of a command.
func CommandKey(name string, seqID uint64) string {
	return "command_name:" + name + ";sequid:" + strconv.FormatUint(seqID, 10) + ";"
}
