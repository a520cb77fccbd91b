// Package flexmsg implements the flex.gui controller message format.
//
// Every message travels in an envelope: a 4-byte little-endian magic number
// (0x0001BA5E), a 4-byte little-endian payload length and the payload, a UTF-8
// XML document rooted at flexData in the "flex.gui" namespace.
//
// Requests:
//   - NewReadRequest: dataExchange/dataRequest/data, pull or push mode.
//   - NewUpdateRequest: dataExchange/dataUpdate/data with an integer value.
//   - NewCommand: operations/command with ordered parameters.
//
// Replies and events are decoded by Decode into one of the Message types:
//   - DataUpdate: the value of a read or pushed signal.
//   - DataUpdateAck: acknowledgement of an update request.
//   - CommandResult: outcome of a command.
//   - Notification: an asynchronous controller event.
//   - Unknown: anything else.
//
// DataUpdate, DataUpdateAck and CommandResult carry a correlation key (see
// Keyed) computed exactly like the key of the request they answer.
package flexmsg
