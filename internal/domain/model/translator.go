package model

// TranslatorType classifies a translator commercially.
type TranslatorType string

// TranslatorLevel is a certification level held by a translator.
type TranslatorLevel string

const (
	// TranslatorTypeProfessional serves paid bookings.
	TranslatorTypeProfessional TranslatorType = "professional"
	// TranslatorTypeRWS serves rws bookings.
	TranslatorTypeRWS TranslatorType = "rwstranslator"
	// TranslatorTypeVolunteer serves unpaid bookings.
	TranslatorTypeVolunteer TranslatorType = "volunteer"
)

const (
	// LevelCertified is a generally certified translator.
	LevelCertified TranslatorLevel = "Certified"
	// LevelCertifiedLaw is certified with specialisation in law.
	LevelCertifiedLaw TranslatorLevel = "Certified with specialisation in law"
	// LevelCertifiedHealth is certified with specialisation in health care.
	LevelCertifiedHealth TranslatorLevel = "Certified with specialisation in health care"
	// LevelLayman holds no certification.
	LevelLayman TranslatorLevel = "Layman"
	// LevelReadCourses has read translation courses.
	LevelReadCourses TranslatorLevel = "Read Translation courses"
)

// Valid returns true if the TranslatorType is a known type.
func (t TranslatorType) Valid() bool {
	return t == TranslatorTypeProfessional || t == TranslatorTypeRWS || t == TranslatorTypeVolunteer
}

// AllLevels returns every known translator level. Bookings without a
// certification requirement admit all of them.
func AllLevels() []TranslatorLevel {
	return []TranslatorLevel{
		LevelCertified,
		LevelCertifiedLaw,
		LevelCertifiedHealth,
		LevelLayman,
		LevelReadCourses,
	}
}

// TranslatorProfile is the read-only matcher input describing a translator.
// The core never mutates profiles.
type TranslatorProfile struct {
	ID        string            `json:"id"         db:"id"`
	Name      string            `json:"name"       db:"name"`
	Email     string            `json:"email"      db:"email"`
	Mobile    string            `json:"mobile"     db:"mobile"`
	Type      TranslatorType    `json:"translator_type" db:"translator_type"`
	Gender    *Gender           `json:"gender,omitempty" db:"gender"`
	Levels    []TranslatorLevel `json:"levels"`
	Languages []string          `json:"languages"`
	Towns     []string          `json:"towns"`
	// BlacklistedBy lists customer ids that blacklist this translator.
	BlacklistedBy []string `json:"blacklisted_by"`

	// Notification opt-outs.
	NotGetNotification bool `json:"not_get_notification" db:"not_get_notification"`
	NotGetEmergency    bool `json:"not_get_emergency"    db:"not_get_emergency"`
	NotGetNighttime    bool `json:"not_get_nighttime"    db:"not_get_nighttime"`
}

// HasLanguage reports whether the translator lists the language.
func (p *TranslatorProfile) HasLanguage(languageID string) bool {
	for _, l := range p.Languages {
		if l == languageID {
			return true
		}
	}
	return false
}

// HasLevel reports whether the translator holds any of the given levels.
func (p *TranslatorProfile) HasLevel(levels []TranslatorLevel) bool {
	for _, want := range levels {
		for _, have := range p.Levels {
			if have == want {
				return true
			}
		}
	}
	return false
}

// BlacklistedByCustomer reports whether the given customer blacklists the translator.
func (p *TranslatorProfile) BlacklistedByCustomer(customerID string) bool {
	for _, c := range p.BlacklistedBy {
		if c == customerID {
			return true
		}
	}
	return false
}

// SharesTown reports whether the translator shares any town with the customer.
func (p *TranslatorProfile) SharesTown(customerTowns []string) bool {
	for _, ct := range customerTowns {
		for _, tt := range p.Towns {
			if ct == tt {
				return true
			}
		}
	}
	return false
}

// User is a minimal account record used for addressing notifications.
type User struct {
	ID     string `json:"id"     db:"id"`
	Name   string `json:"name"   db:"name"`
	Email  string `json:"email"  db:"email"`
	Mobile string `json:"mobile" db:"mobile"`
	// ConsumerType classifies a customer account for billing
	// ("paid", "rwsconsumer", "ngo"); empty for translators.
	ConsumerType string `json:"consumer_type,omitempty" db:"consumer_type"`
	// Towns the user belongs to; used for physical-only booking matching.
	Towns []string `json:"towns,omitempty"`
}

// NotificationTarget is a resolved recipient plus the channel addressing data
// the dispatcher needs. Built fresh per dispatch, never persisted.
type NotificationTarget struct {
	UserID string
	Name   string
	Email  string
	Phone  string
	// PushTag is the tag value matched by the push gateway's tag filter.
	// The gateway matches on lowercased email.
	PushTag string
	// OptOutPush suppresses push delivery to this recipient entirely.
	OptOutPush bool
	// DelayNighttime defers pushes sent during the night window to the next
	// business morning.
	DelayNighttime bool
}

// TargetFromProfile builds a NotificationTarget from a translator profile.
func TargetFromProfile(p *TranslatorProfile) NotificationTarget {
	return NotificationTarget{
		UserID:         p.ID,
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Mobile,
		PushTag:        p.Email,
		OptOutPush:     p.NotGetNotification,
		DelayNighttime: p.NotGetNighttime,
	}
}

// TargetFromUser builds a NotificationTarget from a user account.
func TargetFromUser(u *User) NotificationTarget {
	return NotificationTarget{
		UserID:  u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Mobile,
		PushTag: u.Email,
	}
}
