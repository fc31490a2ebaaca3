package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Valid(t *testing.T) {
	for _, s := range []JobStatus{
		JobStatusPending, JobStatusAssigned, JobStatusStarted, JobStatusCompleted,
		JobStatusTimedout, JobStatusWithdrawBefore24, JobStatusWithdrawAfter24,
		JobStatusNotCarriedOutCustomer,
	} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, JobStatus("running").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := []JobStatus{
		JobStatusCompleted, JobStatusWithdrawBefore24,
		JobStatusWithdrawAfter24, JobStatusNotCarriedOutCustomer,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusAssigned, JobStatusStarted, JobStatusTimedout} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestJobTypeForConsumer(t *testing.T) {
	tests := []struct {
		consumer string
		want     JobType
	}{
		{"rwsconsumer", JobTypeRWS},
		{"ngo", JobTypeUnpaid},
		{"paid", JobTypePaid},
		{"", JobTypeUnpaid},
		{"unknown", JobTypeUnpaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JobTypeForConsumer(tt.consumer), tt.consumer)
	}
}

func TestJob_PhysicalOnly(t *testing.T) {
	job := &Job{CustomerPhysicalType: true}
	assert.True(t, job.PhysicalOnly())

	job.CustomerPhoneType = true
	assert.False(t, job.PhysicalOnly())

	assert.False(t, (&Job{CustomerPhoneType: true}).PhysicalOnly())
}

func TestJob_ContactEmail(t *testing.T) {
	job := &Job{}
	assert.Equal(t, "kund@example.com", job.ContactEmail("kund@example.com"))

	job.UserEmail = "faktura@example.com"
	assert.Equal(t, "faktura@example.com", job.ContactEmail("kund@example.com"))
}

func TestCreateBookingRequest_Validate(t *testing.T) {
	valid := CreateBookingRequest{
		FromLanguageID:    "lang-1",
		Immediate:         false,
		DueDate:           "10/05/2026",
		DueTime:           "14:00",
		Duration:          60,
		CustomerPhoneType: true,
	}

	t.Run("success", func(t *testing.T) {
		req := valid
		require.NoError(t, req.Validate())
	})

	t.Run("immediate skips due fields", func(t *testing.T) {
		req := valid
		req.Immediate = true
		req.DueDate = ""
		req.DueTime = ""
		require.NoError(t, req.Validate())
	})

	t.Run("missing language", func(t *testing.T) {
		req := valid
		req.FromLanguageID = " "
		require.Error(t, req.Validate())
	})

	t.Run("missing due date", func(t *testing.T) {
		req := valid
		req.DueDate = ""
		require.Error(t, req.Validate())
	})

	t.Run("neither phone nor physical", func(t *testing.T) {
		req := valid
		req.CustomerPhoneType = false
		require.Error(t, req.Validate())
	})

	t.Run("missing duration", func(t *testing.T) {
		req := valid
		req.Duration = 0
		require.Error(t, req.Validate())
	})
}

func TestCreateBookingRequest_DerivedGender(t *testing.T) {
	req := CreateBookingRequest{JobFor: []string{"normal", "female"}}
	g := req.DerivedGender()
	require.NotNil(t, g)
	assert.Equal(t, GenderFemale, *g)

	assert.Nil(t, (&CreateBookingRequest{JobFor: []string{"normal"}}).DerivedGender())
}

func TestCreateBookingRequest_DerivedCertified(t *testing.T) {
	tests := []struct {
		name   string
		jobFor []string
		want   *Certified
	}{
		{"none", nil, nil},
		{"normal", []string{"normal"}, ptr(CertifiedNormal)},
		{"certified", []string{"certified"}, ptr(CertifiedYes)},
		{"law", []string{"certified_in_law"}, ptr(CertifiedLaw)},
		{"health", []string{"certified_in_helth"}, ptr(CertifiedHealth)},
		{"normal and certified", []string{"normal", "certified"}, ptr(CertifiedBoth)},
		{"normal and law", []string{"normal", "certified_in_law"}, ptr(CertifiedNLaw)},
		{"normal and health", []string{"normal", "certified_in_helth"}, ptr(CertifiedNHealth)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateBookingRequest{JobFor: tt.jobFor}
			got := req.DerivedCertified()
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestTranslatorJobRelation_Active(t *testing.T) {
	now := time.Now()
	rel := &TranslatorJobRelation{JobID: "j1", TranslatorID: "t1", AssignedAt: now}
	assert.True(t, rel.Active())

	rel.CancelAt = &now
	assert.False(t, rel.Active())

	rel = &TranslatorJobRelation{CompletedAt: &now}
	assert.False(t, rel.Active())

	var nilRel *TranslatorJobRelation
	assert.False(t, nilRel.Active())
}

func TestTranslatorProfile_Helpers(t *testing.T) {
	g := GenderFemale
	p := &TranslatorProfile{
		ID:            "t1",
		Type:          TranslatorTypeProfessional,
		Gender:        &g,
		Levels:        []TranslatorLevel{LevelCertified, LevelLayman},
		Languages:     []string{"lang-1", "lang-2"},
		Towns:         []string{"Stockholm"},
		BlacklistedBy: []string{"cust-9"},
	}

	assert.True(t, p.HasLanguage("lang-2"))
	assert.False(t, p.HasLanguage("lang-3"))

	assert.True(t, p.HasLevel([]TranslatorLevel{LevelCertified, LevelCertifiedLaw}))
	assert.False(t, p.HasLevel([]TranslatorLevel{LevelCertifiedHealth}))

	assert.True(t, p.BlacklistedByCustomer("cust-9"))
	assert.False(t, p.BlacklistedByCustomer("cust-1"))

	assert.True(t, p.SharesTown([]string{"Stockholm", "Uppsala"}))
	assert.False(t, p.SharesTown([]string{"Malmö"}))
}

func ptr(c Certified) *Certified { return &c }
