package flexmsg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-flexgui/address"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

func thetaAddr(t *testing.T, mechID int) address.Resolved {
	t.Helper()

	addr, err := address.MustLookup(address.AxisTheta).Resolve(mechID)
	require.NoError(t, err)

	return addr
}

func TestNewReadRequest(t *testing.T) {
	require := require.New(t)

	req := NewReadRequest(thetaAddr(t, 3), CyclePull, 0.01)
	require.Equal("unit:1;group:Generic;id:SYSTEM!;subid:420;count:6;", req.Key())

	payload, err := req.Encode()
	require.NoError(err)
	require.Equal(xmlHeader+`<flexData version="1" xmlns="flex.gui"><dataExchange><dataRequest>`+
		`<data unit="1" group="Generic" id="SYSTEM!" subid="420" count="6" push="-1" threshold="0.01" priority="5"/>`+
		`</dataRequest></dataExchange></flexData>`, string(payload))

	push := NewReadRequest(thetaAddr(t, 1), Cycle5ms, 0.5)
	payload, err = push.Encode()
	require.NoError(err)
	require.Contains(string(payload), `push="1" threshold="0.5" priority="0"`)
	require.NotContains(string(payload), "\n")
}

func TestNewUpdateRequest(t *testing.T) {
	require := require.New(t)

	addr, err := address.MustLookup(address.InterpolationKind).Resolve(2)
	require.NoError(err)

	req := NewUpdateRequest(addr, 7, 1)
	require.Equal("seqid:7;", req.Key())

	payload, err := req.Encode()
	require.NoError(err)
	require.Equal(xmlHeader+`<flexData version="1" xmlns="flex.gui"><dataExchange><dataUpdate seqid="7">`+
		`<data unit="2" group="SPECIAL" id="nInterpolation" subid="0" count="1"><i>1</i></data>`+
		`</dataUpdate></dataExchange></flexData>`, string(payload))
}

func TestNewCommand(t *testing.T) {
	require := require.New(t)

	req := NewCommand("MoveX", 3,
		Param{Name: "X", Value: 100.5},
		Param{Name: "conf", Value: 0},
		Flag("PAUSE"),
	)
	require.Equal("command_name:MoveX;sequid:3;", req.Key())

	payload, err := req.Encode()
	require.NoError(err)
	require.Equal(xmlHeader+`<flexData version="1" xmlns="flex.gui"><operations>`+
		`<command sequid="3" name="MoveX"><param name="X">100.5</param><param name="conf">0</param><param name="PAUSE"/></command>`+
		`</operations></flexData>`, string(payload))

	frame, err := req.Frame()
	require.NoError(err)
	payloads, err := Unwrap(frame)
	require.NoError(err)
	require.Equal([][]byte{payload}, payloads)
}

func TestDecode_DataUpdate(t *testing.T) {
	require := require.New(t)

	msg, err := Decode([]byte(xmlHeader + `<flexData version="1" xmlns="flex.gui"><dataExchange><dataUpdate>` +
		`<data unit="1" group="Generic" id="SYSTEM!" subid="420" count="6">` +
		`<r>1.5</r><r>-2</r><r>0</r><r>3.25</r><r>4</r><r>5</r></data>` +
		`</dataUpdate></dataExchange></flexData>`))
	require.NoError(err)

	update, ok := msg.(*DataUpdate)
	require.True(ok)
	require.Equal(DataUpdateType, update.Type())
	require.Equal(NewReadRequest(thetaAddr(t, 3), CyclePull, 0).Key(), update.Key())
	require.Equal(RealKind, update.Value.Kind())
	require.Equal([]float64{1.5, -2, 0, 3.25, 4, 5}, update.Value.Floats())
}

func TestDecode_ValueKinds(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kind  ValueKind
		check func(t *testing.T, v Value)
	}{
		{
			name: "integer",
			body: `<i>3</i>`,
			kind: IntKind,
			check: func(t *testing.T, v Value) {
				assert.Equal(t, int64(3), v.Int())
				assert.True(t, v.Bool())
			},
		},
		{
			name: "boolean",
			body: `<b>true</b>`,
			kind: BoolKind,
			check: func(t *testing.T, v Value) {
				assert.True(t, v.Bool())
				assert.Equal(t, 1.0, v.Float())
			},
		},
		{
			name: "boolean digit",
			body: `<b>0</b>`,
			kind: BoolKind,
			check: func(t *testing.T, v Value) {
				assert.False(t, v.Bool())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(`<flexData xmlns="flex.gui"><dataExchange><dataUpdate>` +
				`<data unit="1" group="FixedIO" id="FI" subid="16" count="1">` + tt.body + `</data>` +
				`</dataUpdate></dataExchange></flexData>`))
			require.NoError(t, err)

			update := msg.(*DataUpdate)
			require.Equal(t, tt.kind, update.Value.Kind())
			require.Equal(t, 1, update.Value.Len())
			tt.check(t, update.Value)
		})
	}
}

func TestDecode_Ack(t *testing.T) {
	msg, err := Decode([]byte(`<flexData xmlns="flex.gui"><dataExchange><dataUpdateAck seqid="12"/></dataExchange></flexData>`))
	require.NoError(t, err)

	ack, ok := msg.(*DataUpdateAck)
	require.True(t, ok)
	require.Equal(t, uint64(12), ack.SeqID)
	require.Equal(t, "seqid:12;", ack.Key())
}

func TestDecode_CommandResult(t *testing.T) {
	require := require.New(t)

	msg, err := Decode([]byte(`<flexData xmlns="flex.gui"><operations><commandResult name="MoveX" sequid="4">` +
		`<result>1</result><resultText>OK</resultText></commandResult></operations></flexData>`))
	require.NoError(err)

	res := msg.(*CommandResult)
	require.Equal("command_name:MoveX;sequid:4;", res.Key())
	require.Equal(1, res.Result)
	require.Equal("OK", res.ResultText)
	require.NoError(res.Err())

	msg, err = Decode([]byte(`<flexData xmlns="flex.gui"><operations><commandResult name="MoveX" sequid="5">` +
		`<result>-3</result><resultText>out of range</resultText></commandResult></operations></flexData>`))
	require.NoError(err)

	cmdErr := msg.(*CommandResult).Err()
	require.ErrorIs(cmdErr, ErrCommandFailed)

	var target *CommandError
	require.True(errors.As(cmdErr, &target))
	require.Equal(-3, target.Result)
	require.Equal("out of range", target.Text)
}

func TestDecode_Notification(t *testing.T) {
	require := require.New(t)

	msg, err := Decode([]byte(`<flexData xmlns="flex.gui"><notifications><note>` +
		`<code>2041</code><mech>1</mech><line>12</line><program>main</program>` +
		`<message>Emergency stop</message><content>E-stop</content><measures>Reset</measures>` +
		`</note></notifications></flexData>`))
	require.NoError(err)

	note := msg.(*Notification)
	require.Equal(2041, note.Code)
	require.NotNil(note.MechID)
	require.Equal(1, *note.MechID)
	require.Nil(note.Axis)
	require.Equal(12, *note.Line)
	require.Equal("main", *note.Program)
	require.Equal("Emergency stop", note.Message)
	require.Equal("E-stop", note.Content)
	require.Equal("Reset", note.Measures)
	require.Contains(note.LogFields(), "program")
}

func TestDecode_Priority(t *testing.T) {
	// a document carrying both an update and an ack classifies as data update
	msg, err := Decode([]byte(`<flexData xmlns="flex.gui"><dataExchange>` +
		`<dataUpdateAck seqid="1"/>` +
		`<dataUpdate><data unit="1" group="FixedIO" id="FO" subid="1" count="1"><i>0</i></data></dataUpdate>` +
		`</dataExchange></flexData>`))
	require.NoError(t, err)
	require.Equal(t, DataUpdateType, msg.Type())
}

func TestDecode_Unknown(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"no known subtree", `<flexData xmlns="flex.gui"><status/></flexData>`},
		{"other namespace", `<flexData xmlns="other"><dataExchange><dataUpdateAck seqid="1"/></dataExchange></flexData>`},
		{"no namespace", `<flexData><dataExchange><dataUpdateAck seqid="1"/></dataExchange></flexData>`},
		{"other root", `<hello xmlns="flex.gui"/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.xml))
			require.NoError(t, err)
			require.Equal(t, UnknownType, msg.Type())
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"not xml", `<<<`},
		{"empty", ``},
		{"bad count", `<flexData xmlns="flex.gui"><dataExchange><dataUpdate><data unit="1" group="g" id="i" subid="1" count="x"><i>1</i></data></dataUpdate></dataExchange></flexData>`},
		{"no value", `<flexData xmlns="flex.gui"><dataExchange><dataUpdate><data unit="1" group="g" id="i" subid="1" count="1"/></dataUpdate></dataExchange></flexData>`},
		{"bad real", `<flexData xmlns="flex.gui"><dataExchange><dataUpdate><data unit="1" group="g" id="i" subid="1" count="1"><r>abc</r></data></dataUpdate></dataExchange></flexData>`},
		{"ack without seqid", `<flexData xmlns="flex.gui"><dataExchange><dataUpdateAck/></dataExchange></flexData>`},
		{"result without code", `<flexData xmlns="flex.gui"><operations><commandResult name="x" sequid="1"/></operations></flexData>`},
		{"note without code", `<flexData xmlns="flex.gui"><notifications><note><message>m</message></note></notifications></flexData>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.xml))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestCycle(t *testing.T) {
	require := require.New(t)

	c, err := CycleFromDuration(5 * 1e6)
	require.NoError(err)
	require.Equal(Cycle5ms, c)
	require.True(c.IsPush())

	c, err = CycleFromDuration(1e9)
	require.NoError(err)
	require.Equal(Cycle1000ms, c)
	require.Equal("1s", c.String())

	_, err = CycleFromDuration(7 * 1e6)
	require.Error(err)

	require.False(CyclePull.IsPush())
	require.Equal("pull", CyclePull.String())
	require.Zero(CyclePull.Period())
}

func TestValue(t *testing.T) {
	assert := assert.New(t)

	v := RealValue(1.5, -2.5)
	assert.Equal(2, v.Len())
	assert.Equal([]int64{1, -2}, v.Ints())
	assert.Equal("r[1.5 -2.5]", v.String())

	var empty Value
	assert.Equal(0, empty.Len())
	assert.Zero(empty.Float())
	assert.Zero(empty.Int())
	assert.False(empty.Bool())

	assert.Equal("b[true false]", BoolValue(true, false).String())
	assert.Equal([]float64{7}, IntValue(7).Floats())
}
