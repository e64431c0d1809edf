package domain

import (
	"github.com/google/uuid"

	dErrors "vigil/pkg/domain-errors"
)

// Typed identifiers keep scan, export and override handles from being mixed
// up at call sites. Construct them with the Parse* functions at trust
// boundaries; New* generates fresh random identifiers.
type (
	ScanID     uuid.UUID
	ExportID   uuid.UUID
	OverrideID uuid.UUID
)

func NewScanID() ScanID         { return ScanID(uuid.New()) }
func NewExportID() ExportID     { return ExportID(uuid.New()) }
func NewOverrideID() OverrideID { return OverrideID(uuid.New()) }

func (id ScanID) String() string     { return uuid.UUID(id).String() }
func (id ExportID) String() string   { return uuid.UUID(id).String() }
func (id OverrideID) String() string { return uuid.UUID(id).String() }

func (id ScanID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ExportID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OverrideID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseScanID parses a scan identifier from external input.
func ParseScanID(s string) (ScanID, error) {
	u, err := parseUUID(s, "scan_id")
	return ScanID(u), err
}

// ParseExportID parses an export request identifier from external input.
func ParseExportID(s string) (ExportID, error) {
	u, err := parseUUID(s, "export_id")
	return ExportID(u), err
}

// ParseOverrideID parses an override grant identifier from external input.
func ParseOverrideID(s string) (OverrideID, error) {
	u, err := parseUUID(s, "override_id")
	return OverrideID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}

func (id ScanID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ExportID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id OverrideID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ScanID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ExportID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OverrideID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
