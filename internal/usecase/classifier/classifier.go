// Package classifier guesses whether a Bluetooth device is a mobile phone
// from its class code, manufacturer and name.
package classifier

import (
	"fmt"
	"log/slog"
	"strings"

	"bluetooth-scanner/internal/domain"
	"bluetooth-scanner/internal/infra/logger"
)

// mobilePhoneClasses are the device-class codes treated as phones.
var mobilePhoneClasses = map[string]struct{}{
	"0x000500": {}, // phone
	"0x000504": {}, // smartphone
	"0x000508": {}, // mobile phone
}

var mobileManufacturers = []string{
	"apple",
	"samsung",
	"google",
	"xiaomi",
	"huawei",
	"oneplus",
	"sony",
	"lg",
	"motorola",
	"nokia",
}

var mobileNamePatterns = []string{
	"iphone",
	"samsung",
	"galaxy",
	"pixel",
	"xiaomi",
	"huawei",
}

// Confidence scores for each signal.
const (
	classConfidence        = 0.8
	manufacturerConfidence = 0.7
	manufacturerBoosted    = 0.9
	nameConfidence         = 0.6
	nameBoost              = 0.2
)

// Classifier labels devices. It is stateless apart from its logger.
type Classifier struct {
	logger *slog.Logger
}

// New creates a Classifier that logs every verdict to log.
func New(log *slog.Logger) *Classifier {
	return &Classifier{logger: log}
}

// Classify applies the class, manufacturer and name checks in order. Each
// check can only raise the mobile flag and the confidence.
func (c *Classifier) Classify(info domain.DeviceInfo) domain.Classification {
	res := domain.Classification{
		DeviceType: domain.DeviceTypeUnknown,
	}

	if _, ok := mobilePhoneClasses[info.Class]; ok {
		res.IsMobile = true
		res.DeviceType = domain.DeviceTypeMobilePhone
		res.Confidence = classConfidence
	}

	if containsAny(strings.ToLower(info.Manufacturer), mobileManufacturers) {
		if !res.IsMobile {
			res.IsMobile = true
			res.DeviceType = domain.DeviceTypeMobilePhone
			res.Confidence = manufacturerConfidence
		} else {
			// Overwrite, not additive.
			res.Confidence = manufacturerBoosted
		}
	}

	if containsAny(strings.ToLower(info.Name), mobileNamePatterns) {
		if !res.IsMobile {
			res.IsMobile = true
			res.DeviceType = domain.DeviceTypeMobilePhone
			res.Confidence = nameConfidence
		} else {
			res.Confidence = min(1.0, res.Confidence+nameBoost)
		}
	}

	label := "other device"
	if res.IsMobile {
		label = "mobile phone"
	}
	logger.LogClassification(c.logger, info, fmt.Sprintf("%s (confidence: %.2f)", label, res.Confidence))

	return res
}

// containsAny reports whether s contains any of the lowercase needles.
// An empty s never matches.
func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Properties extracts the normalized property subset handed to storage and
// display code. Name and manufacturer are trimmed.
func Properties(info domain.DeviceInfo) domain.NormalizedProperties {
	return domain.NormalizedProperties{
		Name:           strings.TrimSpace(info.Name),
		Class:          info.Class,
		Manufacturer:   strings.TrimSpace(info.Manufacturer),
		SignalStrength: info.SignalStrength,
		Address:        info.Address,
		LastSeen:       info.LastSeen,
	}
}
