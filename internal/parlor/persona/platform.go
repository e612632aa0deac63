package persona

import "slices"

// Range is an inclusive integer range.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r Range) clamp(v int) int {
	if r.Min > r.Max {
		return v
	}
	return min(max(v, r.Min), r.Max)
}

// Platform holds operator settings for the platform personas are deployed
// on. When AutoAdapt is set, Adapt reshapes each persona to fit them.
type Platform struct {
	DefaultCountry  string `json:"default_country"`
	DefaultLanguage string `json:"default_language"`
	AgeRange        Range  `json:"age_range"`
	ResponseStyle   string `json:"response_style"`
	PlatformType    string `json:"platform_type"`
	AutoAdapt       bool   `json:"auto_adapt"`
	MessageLimits   Range  `json:"message_limits"`
	EmojiUsage      bool   `json:"emoji_usage"`
	NSFWLevel       string `json:"nsfw_level"`
}

// DefaultPlatform returns the settings used until an operator stores their
// own. AutoAdapt is off so personas are served exactly as configured.
func DefaultPlatform() Platform {
	return Platform{
		DefaultCountry:  "Россия",
		DefaultLanguage: "ru",
		AgeRange:        Range{Min: 18, Max: 35},
		ResponseStyle:   "flirty",
		PlatformType:    "dating",
		AutoAdapt:       false,
		MessageLimits:   Range{Min: 3, Max: 8},
		EmojiUsage:      true,
		NSFWLevel:       "medium",
	}
}

// Adapt returns a copy of cfg reshaped for the platform. cfg itself is never
// modified. With AutoAdapt off the copy is identical to cfg.
func Adapt(cfg *Config, p Platform) *Config {
	out := cfg.Clone()
	if !p.AutoAdapt {
		return out
	}

	out.Age = p.AgeRange.clamp(out.Age)
	if p.DefaultCountry != "" {
		out.Country = p.DefaultCountry
	}
	if p.DefaultLanguage != "" {
		out.Language = p.DefaultLanguage
	}
	out.MessageCount = max(p.MessageLimits.clamp(out.MessageCount), 1)

	if p.ResponseStyle != "" && !slices.Contains(out.PersonalityTraits, p.ResponseStyle) {
		out.PersonalityTraits = append(out.PersonalityTraits, p.ResponseStyle)
	}
	out.UseEmoji = p.EmojiUsage

	return out
}
