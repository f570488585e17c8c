package persistence

import "time"

// Studio is a tenant account. Every other entity is scoped by StudioID.
type Studio struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt time.Time
}

// Teacher is an instructor employed by a studio.
type Teacher struct {
	ID        string
	StudioID  string
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
}

// Location is a room or site where sessions run.
type Location struct {
	ID        string
	StudioID  string
	Name      string
	Address   string
	CreatedAt time.Time
}

// ClassType is a catalog entry describing a kind of class.
type ClassType struct {
	ID              string
	StudioID        string
	Name            string
	DurationMinutes int
	Capacity        int
	CreatedAt       time.Time
}

// Client is a customer of a studio.
type Client struct {
	ID          string
	StudioID    string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth *time.Time
	CreatedAt   time.Time
}

// ClassSession is one scheduled instance of a class type.
type ClassSession struct {
	ID               string
	StudioID         string
	ClassTypeID      string
	TeacherID        string
	LocationID       string
	Start            time.Time
	End              time.Time
	Capacity         int
	RecurringGroupID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionListing decorates a session with its booking count for calendar views.
type SessionListing struct {
	Session        ClassSession
	ClassTypeName  string
	TeacherName    string
	LocationName   string
	ActiveBookings int
}

// BlockedTime is a teacher-declared unavailability window.
type BlockedTime struct {
	ID        string
	StudioID  string
	TeacherID string
	Start     time.Time
	End       time.Time
	Reason    string
	CreatedAt time.Time
}

// BookingStatus enumerates the lifecycle states of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingNoShow    BookingStatus = "NO_SHOW"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking links a client to a class session.
type Booking struct {
	ID          string
	StudioID    string
	ClientID    string
	SessionID   string
	Status      BookingStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// BookingDetail is a booking joined with the client, session, and catalog
// names needed to render notifications.
type BookingDetail struct {
	Booking       Booking
	Client        Client
	Session       ClassSession
	ClassTypeName string
	TeacherName   string
	LocationName  string
}

// SubscriptionStatus enumerates membership subscription states.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
)

// Subscription is a client's recurring membership.
type Subscription struct {
	ID               string
	StudioID         string
	ClientID         string
	PlanName         string
	Status           SubscriptionStatus
	CurrentPeriodEnd time.Time
	CreatedAt        time.Time
}

// SubscriptionDetail is a subscription joined with its client.
type SubscriptionDetail struct {
	Subscription Subscription
	Client       Client
}

// AutomationStatus enumerates whether an automation participates in runs.
type AutomationStatus string

const (
	AutomationActive   AutomationStatus = "ACTIVE"
	AutomationPaused   AutomationStatus = "PAUSED"
	AutomationArchived AutomationStatus = "ARCHIVED"
)

// Channel selects the delivery transport for an automation.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// Automation is a tenant-scoped messaging rule.
type Automation struct {
	ID             string
	StudioID       string
	Name           string
	Trigger        string
	Channel        Channel
	Status         AutomationStatus
	Subject        string
	Body           string
	HTMLBody       string
	ReminderHours  *int
	TriggerDelay   *int
	TriggerDays    *int
	LocationID     *string
	TotalSent      int
	TotalDelivered int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AutomationTarget is an active automation with the studio context needed to evaluate it.
type AutomationTarget struct {
	Automation Automation
	Studio     Studio
}

// MessageStatus enumerates the outbox states of a message.
type MessageStatus string

const (
	MessageQueued MessageStatus = "QUEUED"
	MessageSent   MessageStatus = "SENT"
	MessageFailed MessageStatus = "FAILED"
)

// Message is one outbox row. ThreadID is the idempotency key.
type Message struct {
	ID                string
	StudioID          string
	AutomationID      string
	ClientID          string
	ThreadID          string
	Channel           Channel
	Recipient         string
	Subject           string
	Body              string
	Status            MessageStatus
	ProviderMessageID string
	FailureReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SentAt            *time.Time
}
