package panel

import (
	"fmt"
	"time"
)

// DefaultUsageDuration is sent for start-on-first-use users that carry no
// usage duration; panels reject such modify calls otherwise.
const DefaultUsageDuration int64 = 86400

// ModifyPayload is the body of a user modify call. Nil fields are omitted.
type ModifyPayload map[string]interface{}

// PrepareModify builds the modify payload for u, preserving every field the
// panel would otherwise reset on a partial update.
func PrepareModify(u *User) ModifyPayload {
	p := ModifyPayload{
		"username":    u.Username,
		"service_ids": serviceIDs(u.ServiceIDs),
	}

	switch u.ExpireStrategy {
	case ExpireStartOnFirstUse:
		if u.UsageDuration != nil {
			p["usage_duration"] = *u.UsageDuration
		} else {
			p["usage_duration"] = DefaultUsageDuration
		}
	case ExpireFixedDate:
		if u.ExpireDate != nil {
			p["expire_date"] = u.ExpireDate.UTC().Format(time.RFC3339)
		}
	}

	if u.DataLimit != nil {
		p["data_limit"] = *u.DataLimit
	}
	if u.DataLimitResetStrategy != "" {
		p["data_limit_reset_strategy"] = u.DataLimitResetStrategy
	}
	if u.Note != nil {
		p["note"] = *u.Note
	}
	if u.ActivationDeadline != nil {
		p["activation_deadline"] = u.ActivationDeadline.UTC().Format(time.RFC3339)
	}
	p["enabled"] = u.Enabled
	if u.ExpireStrategy != "" {
		p["expire_strategy"] = string(u.ExpireStrategy)
	}

	return p
}

func serviceIDs(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return append([]int(nil), ids...)
}

// ValidateUser reports an inconsistency that PrepareModify papers over.
// The result is a warning; callers still send the modify call.
func ValidateUser(u *User) string {
	switch u.ExpireStrategy {
	case ExpireStartOnFirstUse:
		if u.UsageDuration == nil {
			return fmt.Sprintf("user %s has start_on_first_use but no usage_duration", u.Username)
		}
	case ExpireFixedDate:
		if u.ExpireDate == nil {
			return fmt.Sprintf("user %s has fixed_date but no expire_date", u.Username)
		}
	}
	return ""
}
