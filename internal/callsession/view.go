package callsession

import (
	"github.com/ashureev/interviewprep/internal/call"
	"github.com/ashureev/interviewprep/internal/domain"
)

// socketView renders controller state as server frames and mirrors call
// events into the conversation log.
type socketView struct {
	out    *outboundWriter
	log    *ConversationLogger
	logKey ConversationLogEvent
}

var _ call.View = (*socketView)(nil)

func (v *socketView) StatusChanged(status call.Status) {
	v.out.Send(serverFrame{Type: frameStatus, Status: status})
	v.record(LogEventStatus, "", string(status))
}

func (v *socketView) ErrorChanged(message string) {
	v.out.Send(serverFrame{Type: frameError, Message: &message})
	if message != "" {
		v.record(LogEventError, "", message)
	}
}

func (v *socketView) TranscriptAppended(msg domain.TranscriptMessage) {
	v.out.Send(serverFrame{Type: frameTranscript, Transcript: &msg})
	v.record(LogEventTranscript, string(msg.Role), msg.Content)
}

func (v *socketView) SpeakingChanged(speaking bool) {
	v.out.Send(serverFrame{Type: frameSpeaking, Speaking: &speaking})
}

func (v *socketView) CallStarted(callID, joinURL string) {
	v.out.Send(serverFrame{Type: frameCall, CallID: callID, JoinURL: joinURL})
	v.record(LogEventCallStart, "", callID)
}

func (v *socketView) Navigate(path string) {
	v.out.Send(serverFrame{Type: frameNavigate, Path: path})
	v.record(LogEventNavigate, "", path)
}

func (v *socketView) record(eventType, role, content string) {
	if v.log == nil {
		return
	}
	ev := v.logKey
	ev.EventType = eventType
	ev.Role = role
	ev.Content = content
	v.log.Log(ev)
}
