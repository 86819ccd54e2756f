// internal/selftest/regions_test.go
package selftest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRAMLayout_CheckRegions(t *testing.T) {
	layout := RAMLayout{Backup: Region{Start: 0x20008000, End: 0x2000807F}}

	cases := []struct {
		name    string
		regions []Region
		ok      bool
	}{
		{"valid", []Region{{0x20000000, 0x200003FF}}, true},
		{"two regions touching", []Region{{0x20000000, 0x2000001F}, {0x20000020, 0x2000003F}}, true},
		{"region right after backup", []Region{{0x20008080, 0x200080FF}}, true},
		{"none", nil, false},
		{"start not aligned", []Region{{0x20000001, 0x2000003F}}, false},
		{"end not aligned", []Region{{0x20000000, 0x2000003E}}, false},
		{"size not two blocks", []Region{{0x20000000, 0x2000002F}}, false},
		{"end before start", []Region{{0x20000040, 0x2000001F}}, false},
		{"contains backup", []Region{{0x20007F00, 0x200080FF}}, false},
		{"backup straddles end", []Region{{0x20007FE0, 0x2000801F}}, false},
		{"overlapping regions", []Region{{0x20000000, 0x2000003F}, {0x20000020, 0x2000005F}}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := layout.CheckRegions(c.regions)
			if c.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRegion)
		})
	}
}

func TestRAMLayout_NoBackupConfigured(t *testing.T) {
	assert.NoError(t, RAMLayout{}.CheckRegions([]Region{{0, 0x1F}}))
}

func TestROMLayout_CheckRegions(t *testing.T) {
	layout := ROMLayout{FlashBase: 0x08000000, CRCStart: 0x08020000}

	cases := []struct {
		name    string
		regions []Region
		ok      bool
	}{
		{"valid", []Region{{0x08000000, 0x08001FFF}}, true},
		{"second sector", []Region{{0x08000400, 0x080007FF}}, true},
		{"up to crc area", []Region{{0x0801FC00, 0x0801FFFF}}, true},
		{"below flash", []Region{{0x07FFFC00, 0x080003FF}}, false},
		{"into crc area", []Region{{0x0801FC00, 0x080203FF}}, false},
		{"crc area only", []Region{{0x08020000, 0x080203FF}}, false},
		{"not sector aligned", []Region{{0x08000200, 0x080007FF}}, false},
		{"end not word aligned", []Region{{0x08000000, 0x080003FD}}, false},
		{"empty range", []Region{{0x08000400, 0x08000400}}, false},
		{"overlap", []Region{{0x08000000, 0x080007FF}, {0x08000400, 0x08000BFF}}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := layout.CheckRegions(c.regions)
			if c.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRegion)
		})
	}
}

func TestROMLayout_CRCBelowFlashRejected(t *testing.T) {
	err := ROMLayout{FlashBase: 0x08000000, CRCStart: 0x08000000}.CheckRegions([]Region{{0x08000000, 0x080003FF}})
	assert.ErrorIs(t, err, ErrInvalidRegion)
}
