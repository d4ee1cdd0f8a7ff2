package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborhood_directory/internal/domain"
)

func validBusiness() domain.Business {
	return domain.Business{
		Name:     "Padaria Central",
		Category: domain.CategoryCommerce,
		Address:  "Rua das Flores, 10",
		Hours: domain.WeeklyHours{
			"monday": {Open: true, Opens: "07:00", Closes: "19:00"},
			"sunday": {Open: false},
		},
	}
}

func TestBusinessValidate(t *testing.T) {
	require.NoError(t, validBusiness().Validate())

	cases := map[string]func(b *domain.Business){
		"name":     func(b *domain.Business) { b.Name = "  " },
		"category": func(b *domain.Business) { b.Category = "bar" },
		"address":  func(b *domain.Business) { b.Address = "" },
		"images":   func(b *domain.Business) { b.Images = []string{"1", "2", "3", "4", "5", "6"} },
		"coords":   func(b *domain.Business) { b.Coords = &domain.Coords{Lat: 91} },
		"hours":    func(b *domain.Business) { b.Hours["friday"] = domain.DayHours{Open: true, Opens: "18:00", Closes: "18:00"} },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			b := validBusiness()
			mutate(&b)
			err := b.Validate()
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, field, ve.Field)
		})
	}
}

func TestBusinessPatch_AddressChangeDropsCoords(t *testing.T) {
	b := validBusiness()
	b.Coords = &domain.Coords{Lat: -23.5, Lon: -46.6}

	addr := "Avenida Brasil, 200"
	got := domain.BusinessPatch{Address: &addr}.Apply(b)
	assert.Equal(t, addr, got.Address)
	assert.Nil(t, got.Coords)

	same := b.Address
	got = domain.BusinessPatch{Address: &same}.Apply(b)
	assert.NotNil(t, got.Coords)
}

func TestRegistrationValidate(t *testing.T) {
	r := domain.Registration{Name: "Ana", Email: "ana@example.com", Password: "segredo", ConfirmPassword: "segredo"}
	require.NoError(t, r.Validate())

	r.ConfirmPassword = "outro"
	var ve *domain.ValidationError
	require.ErrorAs(t, r.Validate(), &ve)
	assert.Equal(t, "mismatch", ve.Reason)

	r.Password, r.ConfirmPassword = "abc", "abc"
	require.ErrorAs(t, r.Validate(), &ve)
	assert.Equal(t, "too_short", ve.Reason)
}

func TestHoursValidate_OvernightClosing(t *testing.T) {
	h := domain.WeeklyHours{"friday": {Open: true, Opens: "18:00", Closes: "02:00"}}
	require.NoError(t, h.Validate())
}

func TestPatchApply_CanonicalizesCategory(t *testing.T) {
	cat := domain.Category(" Beleza ")
	b := domain.BusinessPatch{Category: &cat}.Apply(validBusiness())
	assert.Equal(t, domain.CategoryBeauty, b.Category)
	require.NoError(t, b.Validate())
}
