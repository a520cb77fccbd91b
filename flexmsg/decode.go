package flexmsg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	dataUpdatePath    = "dataExchange/dataUpdate/data"
	dataUpdateAckPath = "dataExchange/dataUpdateAck"
	commandResultPath = "operations/commandResult"
	notificationPath  = "notifications/note"
)

// Decode parses an envelope payload and classifies it.
//
// Shapes are tried in priority order: data update, data update ack, command
// result, notification. A well-formed document matching none of them, or
// outside the flex.gui namespace, decodes to *Unknown.
func Decode(payload []byte) (Message, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return Classify(doc)
}

// Classify classifies a parsed document.
func Classify(doc *etree.Document) (Message, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	if root.Tag != rootTag || root.NamespaceURI() != Namespace {
		return &Unknown{Root: root.FullTag()}, nil
	}

	if el := findNS(root, dataUpdatePath); el != nil {
		return decodeDataUpdate(el)
	}
	if el := findNS(root, dataUpdateAckPath); el != nil {
		return decodeDataUpdateAck(el)
	}
	if el := findNS(root, commandResultPath); el != nil {
		return decodeCommandResult(el)
	}
	if el := findNS(root, notificationPath); el != nil {
		return decodeNotification(el)
	}

	return &Unknown{Root: root.FullTag()}, nil
}

// findNS returns the first descendant matching path whose elements all
// belong to the flex.gui namespace.
func findNS(root *etree.Element, path string) *etree.Element {
	for _, el := range root.FindElements(path) {
		if inNamespace(el, root) {
			return el
		}
	}

	return nil
}

func inNamespace(el *etree.Element, root *etree.Element) bool {
	for cur := el; cur != nil && cur != root; cur = cur.Parent() {
		if cur.NamespaceURI() != Namespace {
			return false
		}
	}

	return true
}

func decodeDataUpdate(data *etree.Element) (*DataUpdate, error) {
	msg := &DataUpdate{
		Group:     data.SelectAttrValue("group", ""),
		RequestID: data.SelectAttrValue("id", ""),
	}

	var err error
	if msg.Unit, err = intAttr(data, "unit"); err != nil {
		return nil, err
	}
	if msg.SubID, err = intAttr(data, "subid"); err != nil {
		return nil, err
	}
	if msg.Count, err = intAttr(data, "count"); err != nil {
		return nil, err
	}

	children := data.ChildElements()
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: data update without value", ErrMalformed)
	}

	// the first child's local name tags the type of every value
	kind := valueKindOf(children[0].Tag)
	if kind == UnknownKind {
		return nil, fmt.Errorf("%w: unknown value type %q", ErrMalformed, children[0].Tag)
	}

	texts := make([]string, 0, len(children))
	for _, child := range children {
		if child.Tag == children[0].Tag {
			texts = append(texts, child.Text())
		}
	}

	if msg.Value, err = parseValue(kind, texts); err != nil {
		return nil, err
	}

	return msg, nil
}

func decodeDataUpdateAck(el *etree.Element) (*DataUpdateAck, error) {
	seqID, err := uintAttr(el, "seqid")
	if err != nil {
		return nil, err
	}

	return &DataUpdateAck{SeqID: seqID}, nil
}

func decodeCommandResult(el *etree.Element) (*CommandResult, error) {
	seqID, err := uintAttr(el, "sequid")
	if err != nil {
		return nil, err
	}

	msg := &CommandResult{
		Name:  el.SelectAttrValue("name", ""),
		SeqID: seqID,
	}

	resultEl := el.SelectElement("result")
	if resultEl == nil {
		return nil, fmt.Errorf("%w: command result without result code", ErrMalformed)
	}
	if msg.Result, err = strconv.Atoi(strings.TrimSpace(resultEl.Text())); err != nil {
		return nil, fmt.Errorf("%w: result code %q", ErrMalformed, resultEl.Text())
	}

	if textEl := el.SelectElement("resultText"); textEl != nil {
		msg.ResultText = textEl.Text()
	}

	return msg, nil
}

func decodeNotification(note *etree.Element) (*Notification, error) {
	codeEl := note.SelectElement("code")
	if codeEl == nil {
		return nil, fmt.Errorf("%w: notification without code", ErrMalformed)
	}

	code, err := strconv.Atoi(strings.TrimSpace(codeEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("%w: notification code %q", ErrMalformed, codeEl.Text())
	}

	msg := &Notification{
		Code:     code,
		Message:  childText(note, "message"),
		Content:  childText(note, "content"),
		Measures: childText(note, "measures"),
	}

	if msg.MechID, err = optionalInt(note, "mech"); err != nil {
		return nil, err
	}
	if msg.Axis, err = optionalInt(note, "axis"); err != nil {
		return nil, err
	}
	if msg.Line, err = optionalInt(note, "line"); err != nil {
		return nil, err
	}
	if el := note.SelectElement("program"); el != nil {
		program := el.Text()
		msg.Program = &program
	}

	return msg, nil
}

func intAttr(el *etree.Element, key string) (int, error) {
	attr := el.SelectAttr(key)
	if attr == nil {
		return 0, fmt.Errorf("%w: missing %s attribute on %s", ErrMalformed, key, el.Tag)
	}

	n, err := strconv.Atoi(strings.TrimSpace(attr.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s attribute %q", ErrMalformed, key, attr.Value)
	}

	return n, nil
}

func uintAttr(el *etree.Element, key string) (uint64, error) {
	attr := el.SelectAttr(key)
	if attr == nil {
		return 0, fmt.Errorf("%w: missing %s attribute on %s", ErrMalformed, key, el.Tag)
	}

	n, err := strconv.ParseUint(strings.TrimSpace(attr.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s attribute %q", ErrMalformed, key, attr.Value)
	}

	return n, nil
}

func optionalInt(parent *etree.Element, tag string) (*int, error) {
	el := parent.SelectElement(tag)
	if el == nil {
		return nil, nil //nolint:nilnil
	}

	n, err := strconv.Atoi(strings.TrimSpace(el.Text()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrMalformed, tag, el.Text())
	}

	return &n, nil
}

func childText(parent *etree.Element, tag string) string {
	if el := parent.SelectElement(tag); el != nil {
		return el.Text()
	}

	return ""
}
