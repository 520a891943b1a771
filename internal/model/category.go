package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// TrackerCategory classifies what a tracker is used for.
type TrackerCategory string

const (
	// CategoryAdvertising covers ad networks that profile users for targeting.
	CategoryAdvertising TrackerCategory = "advertising"
	// CategoryAnalytics covers tools that measure user behavior.
	CategoryAnalytics TrackerCategory = "analytics"
	// CategoryTagManagement covers loaders that inject other scripts.
	CategoryTagManagement TrackerCategory = "tag_management"
	// CategoryCustomerData covers CRM, chat and support tools holding user identity.
	CategoryCustomerData TrackerCategory = "customer_data"
	// CategorySocial covers social media embeds.
	CategorySocial TrackerCategory = "social"
)

// TrackerCategories lists every valid tracker category.
var TrackerCategories = []TrackerCategory{
	CategoryAdvertising, CategoryAnalytics, CategoryTagManagement, CategoryCustomerData, CategorySocial,
}

// CookieClass is the purpose assigned to a cookie by signature lookup.
type CookieClass string

const (
	CookieEssential   CookieClass = "essential"
	CookieAnalytics   CookieClass = "analytics"
	CookieAdvertising CookieClass = "advertising"
	CookieUnknown     CookieClass = "unknown"
)

// CookieClasses lists every valid cookie class.
var CookieClasses = []CookieClass{CookieEssential, CookieAnalytics, CookieAdvertising, CookieUnknown}

// DetectionChannel names how a tracker was found.
type DetectionChannel string

const (
	// ChannelHTML is a catalogue domain key found in the lower-cased markup.
	ChannelHTML DetectionChannel = "html"
	// ChannelInlineScript is a JavaScript call fragment inside an inline script.
	ChannelInlineScript DetectionChannel = "inline_script"
	// ChannelScriptSrc is a script tag source URL (or a third-party script
	// domain folded back by cross-reference).
	ChannelScriptSrc DetectionChannel = "script_src"
	// ChannelPixelImg is an img tag source URL.
	ChannelPixelImg DetectionChannel = "pixel_img"
)

// DetectionChannels lists every valid detection channel in merge priority order.
var DetectionChannels = []DetectionChannel{ChannelScriptSrc, ChannelPixelImg, ChannelInlineScript, ChannelHTML}

// SignalCategory groups data-collection capabilities detected in markup.
type SignalCategory string

const (
	SignalGeolocation       SignalCategory = "geolocation"
	SignalFingerprint       SignalCategory = "device_fingerprint"
	SignalLocalStorage      SignalCategory = "local_storage"
	SignalSessionRecording  SignalCategory = "session_recording"
	SignalPushNotifications SignalCategory = "push_notifications"
	SignalCameraMicrophone  SignalCategory = "camera_microphone"
	SignalClipboard         SignalCategory = "clipboard"
	SignalWebRTC            SignalCategory = "webrtc"
	SignalBattery           SignalCategory = "battery"
	SignalBluetooth         SignalCategory = "bluetooth"
)

// SignalCategories lists every valid signal category.
var SignalCategories = []SignalCategory{
	SignalGeolocation, SignalFingerprint, SignalLocalStorage, SignalSessionRecording,
	SignalPushNotifications, SignalCameraMicrophone, SignalClipboard, SignalWebRTC,
	SignalBattery, SignalBluetooth,
}

// Confidence describes how trustworthy the retrieved policy text is.
type Confidence string

const (
	// ConfidenceNone means no policy text was retrieved.
	ConfidenceNone Confidence = "none"
	// ConfidenceLow means text was retrieved but is short or unconfirmed.
	ConfidenceLow Confidence = "low"
	// ConfidenceHigh means the text passed the length and keyword checks.
	ConfidenceHigh Confidence = "high"
)

// Confidences lists every valid confidence level.
var Confidences = []Confidence{ConfidenceNone, ConfidenceLow, ConfidenceHigh}

// ParseTrackerCategory converts s into a TrackerCategory.
func ParseTrackerCategory(s string) (TrackerCategory, error) {
	return parseEnum("tracker category", s, TrackerCategories)
}

// ParseCookieClass converts s into a CookieClass.
func ParseCookieClass(s string) (CookieClass, error) {
	return parseEnum("cookie class", s, CookieClasses)
}

// ParseDetectionChannel converts s into a DetectionChannel.
func ParseDetectionChannel(s string) (DetectionChannel, error) {
	return parseEnum("detection channel", s, DetectionChannels)
}

// ParseSignalCategory converts s into a SignalCategory.
func ParseSignalCategory(s string) (SignalCategory, error) {
	return parseEnum("signal category", s, SignalCategories)
}

// ParseConfidence converts s into a Confidence.
func ParseConfidence(s string) (Confidence, error) {
	return parseEnum("confidence", s, Confidences)
}

// Valid reports whether c is an enumerated tracker category.
func (c TrackerCategory) Valid() bool { return slices.Contains(TrackerCategories, c) }

// Valid reports whether c is an enumerated cookie class.
func (c CookieClass) Valid() bool { return slices.Contains(CookieClasses, c) }

// Valid reports whether c is an enumerated detection channel.
func (c DetectionChannel) Valid() bool { return slices.Contains(DetectionChannels, c) }

// Valid reports whether c is an enumerated signal category.
func (c SignalCategory) Valid() bool { return slices.Contains(SignalCategories, c) }

// Valid reports whether c is an enumerated confidence level.
func (c Confidence) Valid() bool { return slices.Contains(Confidences, c) }

// NonEssential reports whether the cookie class implies tracking.
func (c CookieClass) NonEssential() bool {
	return c == CookieAnalytics || c == CookieAdvertising
}

// UnmarshalJSON rejects unknown tracker categories.
func (c *TrackerCategory) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, c, ParseTrackerCategory)
}

// UnmarshalJSON rejects unknown cookie classes.
func (c *CookieClass) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, c, ParseCookieClass)
}

// UnmarshalJSON rejects unknown detection channels.
func (c *DetectionChannel) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, c, ParseDetectionChannel)
}

// UnmarshalJSON rejects unknown signal categories.
func (c *SignalCategory) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, c, ParseSignalCategory)
}

// UnmarshalJSON rejects unknown confidence levels.
func (c *Confidence) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, c, ParseConfidence)
}

func parseEnum[T ~string](kind, s string, valid []T) (T, error) {
	v := T(strings.TrimSpace(s))
	if slices.Contains(valid, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q", ErrUnknownCategory, kind, s)
}

func unmarshalEnum[T ~string](b []byte, dst *T, parse func(string) (T, error)) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := parse(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
