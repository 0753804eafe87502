package crypto

import (
	"testing"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
)

func TestValidateSeed(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		seed := make([]byte, 64)
		seed[17] = 0x01
		if err := ValidateSeed(seed, 64); err != nil {
			t.Errorf("ValidateSeed = %v, want nil", err)
		}
	})

	t.Run("WrongLength", func(t *testing.T) {
		seed := make([]byte, 32)
		seed[0] = 0x01
		if err := ValidateSeed(seed, 64); !qerrors.Is(err, qerrors.ErrSeedInvalid) {
			t.Errorf("ValidateSeed = %v, want ErrSeedInvalid", err)
		}
	})

	t.Run("Nil", func(t *testing.T) {
		if err := ValidateSeed(nil, 64); !qerrors.Is(err, qerrors.ErrSeedInvalid) {
			t.Errorf("ValidateSeed(nil) = %v, want ErrSeedInvalid", err)
		}
	})

	t.Run("AllZero", func(t *testing.T) {
		if err := ValidateSeed(make([]byte, 64), 64); !qerrors.Is(err, qerrors.ErrSeedInvalid) {
			t.Errorf("ValidateSeed(all-zero) = %v, want ErrSeedInvalid", err)
		}
	})
}

func TestGenerateSeeds(t *testing.T) {
	kemSeed, err := GenerateKEMSeed()
	if err != nil {
		t.Fatalf("GenerateKEMSeed failed: %v", err)
	}
	if len(kemSeed) != constants.MLKEMKeySeedSize {
		t.Errorf("KEM seed length = %d, want %d", len(kemSeed), constants.MLKEMKeySeedSize)
	}
	if err := ValidateSeed(kemSeed, constants.MLKEMKeySeedSize); err != nil {
		t.Errorf("generated KEM seed failed validation: %v", err)
	}

	signSeed, err := GenerateSigningSeed()
	if err != nil {
		t.Fatalf("GenerateSigningSeed failed: %v", err)
	}
	if len(signSeed) != constants.MLDSAKeySeedSize {
		t.Errorf("signing seed length = %d, want %d", len(signSeed), constants.MLDSAKeySeedSize)
	}
	if err := ValidateSeed(signSeed, constants.MLDSAKeySeedSize); err != nil {
		t.Errorf("generated signing seed failed validation: %v", err)
	}
}
