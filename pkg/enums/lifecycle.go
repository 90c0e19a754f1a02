package enums

// AccessRequestStatus tracks a role upgrade request.
type AccessRequestStatus string

const (
	AccessRequestPending  AccessRequestStatus = "pending"
	AccessRequestApproved AccessRequestStatus = "approved"
	AccessRequestRejected AccessRequestStatus = "rejected"
)

func (s AccessRequestStatus) IsValid() bool {
	return s == AccessRequestPending || s == AccessRequestApproved || s == AccessRequestRejected
}

// ContactStatus is the triage state of a public contact message.
type ContactStatus string

const (
	ContactStatusNew        ContactStatus = "new"
	ContactStatusInProgress ContactStatus = "in_progress"
	ContactStatusResolved   ContactStatus = "resolved"
)

func (s ContactStatus) IsValid() bool {
	return s == ContactStatusNew || s == ContactStatusInProgress || s == ContactStatusResolved
}

// MessageAudience selects which roles receive a broadcast.
type MessageAudience string

const (
	AudienceAll    MessageAudience = "all"
	AudienceBuyer  MessageAudience = "buyer"
	AudienceDriver MessageAudience = "driver"
)

func (a MessageAudience) IsValid() bool {
	return a == AudienceAll || a == AudienceBuyer || a == AudienceDriver
}

// Reaches reports whether a broadcast for this audience targets role.
func (a MessageAudience) Reaches(role Role) bool {
	switch a {
	case AudienceAll:
		return true
	case AudienceBuyer:
		return role == RoleBuyer
	case AudienceDriver:
		return role == RoleDriver
	default:
		return false
	}
}

type CompanyType string

const (
	CompanyTypeBuyer    CompanyType = "buyer"
	CompanyTypeSupplier CompanyType = "supplier"
)

func (c CompanyType) IsValid() bool {
	return c == CompanyTypeBuyer || c == CompanyTypeSupplier
}
