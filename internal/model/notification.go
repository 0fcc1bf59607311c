package model

import (
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds the cache keeps.
type NotificationType string

const (
	NotificationMention       NotificationType = "mention"
	NotificationReblog        NotificationType = "reblog"
	NotificationFavourite     NotificationType = "favourite"
	NotificationFollow        NotificationType = "follow"
	NotificationFollowRequest NotificationType = "follow_request"
	NotificationPoll          NotificationType = "poll"
	NotificationStatus        NotificationType = "status"
	NotificationUpdate        NotificationType = "update"
	NotificationReport        NotificationType = "admin.report"
	NotificationSevered       NotificationType = "severed_relationships"
	NotificationUnknown       NotificationType = "unknown"
)

var knownNotificationTypes = map[NotificationType]bool{
	NotificationMention:       true,
	NotificationReblog:        true,
	NotificationFavourite:     true,
	NotificationFollow:        true,
	NotificationFollowRequest: true,
	NotificationPoll:          true,
	NotificationStatus:        true,
	NotificationUpdate:        true,
	NotificationReport:        true,
	NotificationSevered:       true,
}

// ParseNotificationType maps a wire value onto the closed set. Anything the
// cache does not know becomes NotificationUnknown.
func ParseNotificationType(s string) NotificationType {
	t := NotificationType(s)
	if knownNotificationTypes[t] {
		return t
	}
	return NotificationUnknown
}

// HasStatus reports whether notifications of this type carry a status.
func (t NotificationType) HasStatus() bool {
	switch t {
	case NotificationMention, NotificationReblog, NotificationFavourite,
		NotificationPoll, NotificationStatus, NotificationUpdate:
		return true
	case NotificationFollow, NotificationFollowRequest, NotificationReport,
		NotificationSevered, NotificationUnknown:
		return false
	}
	return false
}

// Notification is one cached notification row.
//
// Status is set exactly for status-bearing types and Report exactly for
// admin reports. Validate checks that pairing; Payload reads it back as a
// closed variant. The fields stay flat so rows encode to JSON and SQL
// without a custom codec.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Author    Author           `json:"author"`
	Status    *Status          `json:"status,omitempty"`
	Report    *Report          `json:"report,omitempty"`
}

// Validate reports whether n carries the payload its Type calls for.
func (n Notification) Validate() error {
	switch {
	case n.Type.HasStatus():
		if n.Status == nil {
			return fmt.Errorf("notification %s: %s without a status", n.ID, n.Type)
		}
		if n.Report != nil {
			return fmt.Errorf("notification %s: %s with a report", n.ID, n.Type)
		}
	case n.Type == NotificationReport:
		if n.Report == nil {
			return fmt.Errorf("notification %s: %s without a report", n.ID, n.Type)
		}
		if n.Status != nil {
			return fmt.Errorf("notification %s: %s with a status", n.ID, n.Type)
		}
	default:
		if n.Status != nil || n.Report != nil {
			return fmt.Errorf("notification %s: %s carries a payload", n.ID, n.Type)
		}
	}
	return nil
}

// NotificationPayload is a sealed interface over what a notification
// points at. Only StatusPayload, ReportPayload and NoPayload implement it.
//
//	switch p := n.Payload().(type) {
//	case model.StatusPayload:
//	case model.ReportPayload:
//	case model.NoPayload:
//	}
type NotificationPayload interface {
	notificationPayload()
}

// StatusPayload is the status a mention, boost, favourite, poll, post or
// edit notification refers to.
type StatusPayload struct {
	Status Status
}

// ReportPayload is the moderation report behind an admin report.
type ReportPayload struct {
	Report Report
}

// NoPayload is carried by follows, follow requests, severed relationships
// and unknown types. It is also what a cached row whose status was dropped
// reads back as.
type NoPayload struct{}

func (StatusPayload) notificationPayload() {}
func (ReportPayload) notificationPayload() {}
func (NoPayload) notificationPayload()     {}

// Payload returns what n refers to.
func (n Notification) Payload() NotificationPayload {
	switch {
	case n.Type.HasStatus() && n.Status != nil:
		return StatusPayload{Status: *n.Status}
	case n.Type == NotificationReport && n.Report != nil:
		return ReportPayload{Report: *n.Report}
	}
	return NoPayload{}
}
