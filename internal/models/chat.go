package models

import (
	"time"
)

// ChatSession is keyed by appointment, doctor and patient
type ChatSession struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId"`
	DoctorID      string    `json:"doctorId"`
	PatientID     string    `json:"patientId"`
	CreatedAt     time.Time `json:"createdAt"`
	// Fallback marks a session fabricated locally while the API was unavailable.
	Fallback bool `json:"fallback,omitempty"`
}

func (s *ChatSession) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	s.ID = f.str("id", "_id", "sessionId", "chatSessionId")
	s.AppointmentID = f.str("appointmentId", "appointment_id", "appointment.id")
	s.DoctorID = f.str("doctorId", "doctor_id", "doctor.id")
	s.PatientID = f.str("patientId", "patient_id", "patient.id")
	s.CreatedAt = f.time("createdAt", "created_at", "startedAt")
	s.Fallback = f.boolean("fallback")
	return nil
}

// ChatMessage represents a message inside a chat session
type ChatMessage struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	m.ID = f.str("id", "_id", "messageId")
	m.SessionID = f.str("sessionId", "session_id", "chatSessionId")
	m.SenderID = f.str("senderId", "sender_id", "sender.id", "from")
	m.ReceiverID = f.str("receiverId", "receiver_id", "receiver.id", "to")
	m.Body = f.str("body", "message", "content", "text")
	m.Timestamp = f.time("timestamp", "sentAt", "createdAt", "created_at")
	m.Read = f.boolean("read", "isRead", "seen")
	return nil
}
