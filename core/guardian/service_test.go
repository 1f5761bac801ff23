package guardian_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/storage/database/inmem"
)

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	svc := guardian.NewService(inmemdb.NewGuardianRepository(inmemdb.Open()))

	amani, created, err := svc.Resolve(ctx, guardian.Descriptor{
		Name: " Mama Amani ", Relationship: "Mother", Phone: " 0990000001", Email: "Amani@Test.cd",
	})
	require.NoError(t, err)
	require.True(t, created)
	assert.NotEmpty(t, amani.ID)
	assert.Equal(t, "Mama Amani", amani.Name)
	assert.Equal(t, "0990000001", amani.Phone)
	assert.Equal(t, "amani@test.cd", amani.Email)

	tests := []struct {
		name        string
		desc        guardian.Descriptor
		wantID      string // "" means a new guardian
		wantErr     error
		wantErrFlds map[string]string
	}{
		{
			name: "Same contact",
			desc: guardian.Descriptor{Name: "Other", Relationship: "Aunt", Phone: "0990000001", Email: "AMANI@test.cd"},
			wantID: amani.ID,
		},
		{name: "By ID", desc: guardian.Descriptor{ID: " " + amani.ID + " "}, wantID: amani.ID},
		{name: "Unknown ID", desc: guardian.Descriptor{ID: "nope"}, wantErr: guardian.ErrNotFound},
		{
			name: "Missing contact fields",
			desc: guardian.Descriptor{Email: "x@test.cd", Name: "  "},
			wantErrFlds: map[string]string{
				"guardian.name":         "this field is required",
				"guardian.relationship": "this field is required",
				"guardian.phone":        "this field is required",
			},
		},
		{
			name: "Same phone, no email",
			desc: guardian.Descriptor{Name: "Papa Amani", Relationship: "Father", Phone: "0990000001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, created, err := svc.Resolve(ctx, tt.desc)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrFlds != nil:
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				got := make(map[string]string)
				for _, f := range vErr.Fields {
					got[f.Field] = f.Error
				}
				assert.Equal(t, tt.wantErrFlds, got)
			case tt.wantID != "":
				require.NoError(t, err)
				assert.False(t, created)
				assert.Equal(t, tt.wantID, g.ID)
			default:
				require.NoError(t, err)
				assert.True(t, created)
				assert.NotEqual(t, amani.ID, g.ID)
			}
		})
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewGuardianRepository(inmemdb.Open())
	svc := guardian.NewService(repo)

	amani, _, err := svc.Resolve(ctx, guardian.Descriptor{Name: "Mama Amani", Relationship: "Mother", Phone: "1", Email: "amani@test.cd"})
	require.NoError(t, err)
	papa, _, err := svc.Resolve(ctx, guardian.Descriptor{Name: "Papa Amani", Relationship: "Father", Phone: "1", Email: "papa@test.cd"})
	require.NoError(t, err)

	t.Run("Contact taken", func(t *testing.T) {
		email := "papa@test.cd"
		_, err := svc.Update(ctx, amani, guardian.UpdateGuardian{Email: &email})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Len(t, vErr.Fields, 1)
		assert.Equal(t, "email", vErr.Fields[0].Field)
	})

	t.Run("Update", func(t *testing.T) {
		phone := "2"
		g, err := svc.Update(ctx, amani, guardian.UpdateGuardian{Phone: &phone})
		require.NoError(t, err)
		assert.Equal(t, "2", g.Phone)
		assert.Equal(t, amani.Email, g.Email)
	})

	t.Run("Delete with students", func(t *testing.T) {
		require.NoError(t, svc.LinkStudent(ctx, papa.ID, "s1"))
		assert.Equal(t, guardian.ErrHasStudents, svc.Delete(ctx, papa.ID))

		require.NoError(t, svc.UnlinkStudent(ctx, papa.ID, "s1"))
		require.NoError(t, svc.Delete(ctx, papa.ID))
		assert.Equal(t, guardian.ErrNotFound, svc.Delete(ctx, papa.ID))
	})
}
