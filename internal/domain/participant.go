package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	apperrors "lifelink/pkg/errors"
)

// ParticipantKind distinguishes donors from patients. IDs are only unique within a kind.
type ParticipantKind string

const (
	KindDonor   ParticipantKind = "donor"
	KindPatient ParticipantKind = "patient"
)

func ParseParticipantKind(s string) (ParticipantKind, error) {
	switch kind := ParticipantKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case KindDonor, KindPatient:
		return kind, nil
	default:
		return "", apperrors.NewValidationError("participant_kind", fmt.Sprintf("unknown participant kind %q", s))
	}
}

func (k ParticipantKind) Valid() bool {
	return k == KindDonor || k == KindPatient
}

// Label is the generic display name used when a participant cannot be resolved.
func (k ParticipantKind) Label() string {
	switch k {
	case KindDonor:
		return "Donor"
	case KindPatient:
		return "Patient"
	default:
		return "Participant"
	}
}

// Identity is the composite (id, kind) key of a participant.
type Identity struct {
	ID   int64           `json:"id"`
	Kind ParticipantKind `json:"type"`
}

func NewIdentity(id int64, kind string) (Identity, error) {
	k, err := ParseParticipantKind(kind)
	if err != nil {
		return Identity{}, err
	}
	ident := Identity{ID: id, Kind: k}
	if err := ident.Validate(); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// ParseIdentity accepts the id as text, the way query strings carry it.
func ParseIdentity(id, kind string) (Identity, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return Identity{}, apperrors.NewValidationError("participant_id", fmt.Sprintf("invalid participant id %q", id))
	}
	return NewIdentity(n, kind)
}

func (i Identity) Validate() error {
	if !i.Kind.Valid() {
		return apperrors.NewValidationError("participant_kind", fmt.Sprintf("unknown participant kind %q", string(i.Kind)))
	}
	if i.ID <= 0 {
		return apperrors.NewValidationError("participant_id", "participant id must be positive")
	}
	return nil
}

func (i Identity) String() string {
	return string(i.Kind) + ":" + strconv.FormatInt(i.ID, 10)
}

func (i Identity) Equal(other Identity) bool {
	return i.ID == other.ID && i.Kind == other.Kind
}

// Less orders identities by kind, then id.
func (i Identity) Less(other Identity) bool {
	if i.Kind != other.Kind {
		return i.Kind < other.Kind
	}
	return i.ID < other.ID
}

// Participant is a directory entry for a donor or a patient.
type Participant struct {
	Identity
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	BloodType    string    `json:"blood_type,omitempty"`
	City         string    `json:"city,omitempty"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	BloodTypeAPositive  = "A+"
	BloodTypeANegative  = "A-"
	BloodTypeBPositive  = "B+"
	BloodTypeBNegative  = "B-"
	BloodTypeABPositive = "AB+"
	BloodTypeABNegative = "AB-"
	BloodTypeOPositive  = "O+"
	BloodTypeONegative  = "O-"
)

var bloodTypes = []string{
	BloodTypeAPositive, BloodTypeANegative, BloodTypeBPositive, BloodTypeBNegative,
	BloodTypeABPositive, BloodTypeABNegative, BloodTypeOPositive, BloodTypeONegative,
}

// NormalizeBloodType upper-cases and trims s and reports whether it is a known ABO/Rh
// group. An empty value is allowed because blood type is optional.
func NormalizeBloodType(s string) (string, bool) {
	bt := strings.ToUpper(strings.TrimSpace(s))
	if bt == "" {
		return "", true
	}
	if !lo.Contains(bloodTypes, bt) {
		return "", false
	}
	return bt, true
}
