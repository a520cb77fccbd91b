package flexmsg

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/arloliu/go-flexgui/address"
	"github.com/arloliu/go-flexgui/internal/pool"
)

const (
	// Namespace is the XML namespace of every flex.gui document.
	Namespace = "flex.gui"

	rootTag = "flexData"
	version = "1"
)

// Request is an outgoing document and the key its reply will carry.
type Request struct {
	key string
	doc *etree.Document
}

// Key returns the correlation key of the expected reply.
func (r *Request) Key() string {
	return r.key
}

// Document returns the XML tree of the request.
func (r *Request) Document() *etree.Document {
	return r.doc
}

// Encode serializes the request to UTF-8 XML without newlines.
func (r *Request) Encode() ([]byte, error) {
	return Encode(r.doc)
}

// Frame serializes the request and wraps it in an envelope.
func (r *Request) Frame() ([]byte, error) {
	payload, err := r.Encode()
	if err != nil {
		return nil, err
	}

	return Wrap(payload), nil
}

// Param is a named command parameter. A nil Value makes a flag-only parameter.
type Param struct {
	Name  string
	Value any
}

// Flag returns a flag-only parameter.
func Flag(name string) Param {
	return Param{Name: name}
}

func newDocument() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement(rootTag)
	root.CreateAttr("version", version)
	root.CreateAttr("xmlns", Namespace)

	return doc, root
}

func addAddressAttrs(el *etree.Element, addr address.Resolved) {
	el.CreateAttr("unit", strconv.Itoa(addr.Unit))
	el.CreateAttr("group", string(addr.Group))
	el.CreateAttr("id", addr.RequestID)
	el.CreateAttr("subid", strconv.Itoa(addr.SubID))
	el.CreateAttr("count", strconv.Itoa(addr.Count))
}

// NewReadRequest builds a data request for addr.
//
// CyclePull asks for one value. Any push cycle subscribes to a stream
// emitted every cycle or when the value moves by more than threshold.
func NewReadRequest(addr address.Resolved, cycle Cycle, threshold float64) *Request {
	doc, root := newDocument()

	data := root.CreateElement("dataExchange").CreateElement("dataRequest").CreateElement("data")
	addAddressAttrs(data, addr)

	priority := cycle
	if cycle == CyclePull {
		data.CreateAttr("push", "-1")
		priority = Cycle500ms
	} else {
		data.CreateAttr("push", "1")
	}
	data.CreateAttr("threshold", strconv.FormatFloat(threshold, 'g', -1, 64))
	data.CreateAttr("priority", strconv.Itoa(int(priority)))

	return &Request{key: addr.Key(), doc: doc}
}

// NewUpdateRequest builds an update writing an integer value to addr.
func NewUpdateRequest(addr address.Resolved, seqID uint64, value int64) *Request {
	doc, root := newDocument()

	update := root.CreateElement("dataExchange").CreateElement("dataUpdate")
	update.CreateAttr("seqid", strconv.FormatUint(seqID, 10))

	data := update.CreateElement("data")
	addAddressAttrs(data, addr)
	data.CreateElement("i").SetText(strconv.FormatInt(value, 10))

	return &Request{key: UpdateKey(seqID), doc: doc}
}

// NewCommand builds a command with its parameters in order.
func NewCommand(name string, seqID uint64, params ...Param) *Request {
	doc, root := newDocument()

	cmd := root.CreateElement("operations").CreateElement("command")
	cmd.CreateAttr("sequid", strconv.FormatUint(seqID, 10))
	cmd.CreateAttr("name", name)

	for _, p := range params {
		el := cmd.CreateElement("param")
		el.CreateAttr("name", p.Name)
		if p.Value != nil {
			el.SetText(formatParam(p.Value))
		}
	}

	return &Request{key: CommandKey(name, seqID), doc: doc}
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}

// Encode serializes doc to UTF-8 XML with every newline removed.
func Encode(doc *etree.Document) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if _, err := doc.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}

	return bytes.ReplaceAll(buf.Bytes(), []byte{'\n'}, nil), nil
}
