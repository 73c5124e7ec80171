package models

// SettingsVersion is the current transfer settings schema version. The
// writer forces saved documents to this version.
const SettingsVersion = 1

// RetrySettings controls the exponential backoff applied to failed items.
type RetrySettings struct {
	MaxAttempts      int     `json:"max_attempts" validate:"min=1,max=10"`
	BaseDelaySeconds float64 `json:"base_delay_seconds" validate:"min=0,max=60"`
	MaxDelaySeconds  float64 `json:"max_delay_seconds" validate:"min=1,max=300"`
}

// NamingSettings holds the title/description templates rendered against the
// whitelisted template context.
type NamingSettings struct {
	TitleTemplate       string `json:"title_template" validate:"max=200"`
	DescriptionTemplate string `json:"description_template" validate:"max=1000"`
}

// PrivacySettings controls the post-upload privacy apply. "default" means
// leave the sink's own default untouched.
type PrivacySettings struct {
	Visibility string `json:"visibility" validate:"oneof=default private public"`
}

// GearSettings links uploaded activities to a sink gear entry.
type GearSettings struct {
	Enabled bool   `json:"enabled"`
	GearID  string `json:"gear_id,omitempty"`
}

// TransferSettings is the singleton transfer policy document. Jobs store a
// deep copy at creation.
type TransferSettings struct {
	Version      int             `json:"version"`
	Concurrency  int             `json:"concurrency" validate:"min=1,max=10"`
	Retry        RetrySettings   `json:"retry"`
	Naming       NamingSettings  `json:"naming"`
	Privacy      PrivacySettings `json:"privacy"`
	Gear         GearSettings    `json:"gear"`
	SportMapping map[int]string  `json:"sport_mapping"`
}

// DefaultTransferSettings returns the policy used until the operator saves
// their own.
func DefaultTransferSettings() TransferSettings {
	return TransferSettings{
		Version:     SettingsVersion,
		Concurrency: 2,
		Retry: RetrySettings{
			MaxAttempts:      3,
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  60,
		},
		Naming: NamingSettings{
			TitleTemplate:       "{sport} {start_local:%Y-%m-%d %H:%M}",
			DescriptionTemplate: "",
		},
		Privacy: PrivacySettings{
			Visibility: "default",
		},
		Gear:         GearSettings{},
		SportMapping: map[int]string{},
	}
}

// Clone returns a deep copy, used when snapshotting settings into a job.
func (s TransferSettings) Clone() TransferSettings {
	out := s
	out.SportMapping = make(map[int]string, len(s.SportMapping))
	for k, v := range s.SportMapping {
		out.SportMapping[k] = v
	}
	return out
}

// SettingsPatch is a partial settings update. Nil fields keep the current
// value; set fields are validated before the merge is committed.
type SettingsPatch struct {
	Concurrency *int               `json:"concurrency,omitempty"`
	Retry       *RetryPatch        `json:"retry,omitempty"`
	Naming      *NamingPatch       `json:"naming,omitempty"`
	Privacy     *PrivacyPatch      `json:"privacy,omitempty"`
	Gear        *GearPatch         `json:"gear,omitempty"`
	SportMap    *map[string]string `json:"sport_mapping,omitempty"`
}

type RetryPatch struct {
	MaxAttempts      *int     `json:"max_attempts,omitempty"`
	BaseDelaySeconds *float64 `json:"base_delay_seconds,omitempty"`
	MaxDelaySeconds  *float64 `json:"max_delay_seconds,omitempty"`
}

type NamingPatch struct {
	TitleTemplate       *string `json:"title_template,omitempty"`
	DescriptionTemplate *string `json:"description_template,omitempty"`
}

type PrivacyPatch struct {
	Visibility *string `json:"visibility,omitempty"`
}

type GearPatch struct {
	Enabled *bool   `json:"enabled,omitempty"`
	GearID  *string `json:"gear_id,omitempty"`
}
