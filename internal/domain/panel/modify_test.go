package panel

import (
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }

func TestPrepareModify(t *testing.T) {
	expire := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	note := "vip"

	tests := []struct {
		name    string
		user    User
		want    map[string]interface{}
		missing []string
	}{
		{
			name: "start on first use without duration gets one day",
			user: User{Username: "alice", ServiceIDs: []int{1}, ExpireStrategy: ExpireStartOnFirstUse, Enabled: true},
			want: map[string]interface{}{
				"usage_duration":  DefaultUsageDuration,
				"expire_strategy": "start_on_first_use",
				"enabled":         true,
			},
			missing: []string{"expire_date", "note", "data_limit"},
		},
		{
			name: "start on first use keeps duration",
			user: User{Username: "bob", ExpireStrategy: ExpireStartOnFirstUse, UsageDuration: int64p(3600)},
			want: map[string]interface{}{"usage_duration": int64(3600)},
		},
		{
			name: "fixed date preserves expire date and extras",
			user: User{
				Username:               "carol",
				ServiceIDs:             []int{2, 3},
				ExpireStrategy:         ExpireFixedDate,
				ExpireDate:             &expire,
				DataLimit:              int64p(1 << 30),
				DataLimitResetStrategy: "month",
				Note:                   &note,
			},
			want: map[string]interface{}{
				"expire_date":               "2025-03-01T12:00:00Z",
				"data_limit":                int64(1 << 30),
				"data_limit_reset_strategy": "month",
				"note":                      "vip",
				"enabled":                   false,
			},
			missing: []string{"usage_duration"},
		},
		{
			name:    "never expiring user",
			user:    User{Username: "dave", ExpireStrategy: ExpireNever},
			want:    map[string]interface{}{"expire_strategy": "never"},
			missing: []string{"usage_duration", "expire_date", "activation_deadline"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrepareModify(&tt.user)
			if got["username"] != tt.user.Username {
				t.Errorf("username = %v, want %v", got["username"], tt.user.Username)
			}
			if _, ok := got["service_ids"].([]int); !ok {
				t.Errorf("service_ids missing or wrong type: %T", got["service_ids"])
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
			for _, k := range tt.missing {
				if _, ok := got[k]; ok {
					t.Errorf("%s should be omitted, got %v", k, got[k])
				}
			}
		})
	}
}

func TestPrepareModifyCopiesServiceIDs(t *testing.T) {
	u := User{Username: "alice", ServiceIDs: []int{1, 2}}
	p := PrepareModify(&u)
	ids := p["service_ids"].([]int)
	ids[0] = 99
	if u.ServiceIDs[0] != 1 {
		t.Error("PrepareModify() must not alias the user's service ids")
	}
}

func TestValidateUser(t *testing.T) {
	expire := time.Now()
	tests := []struct {
		name     string
		user     User
		wantWarn bool
	}{
		{"first use without duration", User{Username: "a", ExpireStrategy: ExpireStartOnFirstUse}, true},
		{"first use with duration", User{Username: "a", ExpireStrategy: ExpireStartOnFirstUse, UsageDuration: int64p(1)}, false},
		{"fixed date without date", User{Username: "a", ExpireStrategy: ExpireFixedDate}, true},
		{"fixed date with date", User{Username: "a", ExpireStrategy: ExpireFixedDate, ExpireDate: &expire}, false},
		{"never", User{Username: "a", ExpireStrategy: ExpireNever}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateUser(&tt.user)
			if (got != "") != tt.wantWarn {
				t.Errorf("ValidateUser() = %q, wantWarn %v", got, tt.wantWarn)
			}
		})
	}
}

func TestServerPageSize(t *testing.T) {
	s := &Server{}
	if got := s.PageSize(); got != DefaultPageSize {
		t.Errorf("PageSize() = %d, want %d", got, DefaultPageSize)
	}
	s.SizeValue = 10
	if got := s.PageSize(); got != 10 {
		t.Errorf("PageSize() = %d, want 10", got)
	}
}
