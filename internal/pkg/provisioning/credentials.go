package provisioning

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	usernameSuffixLen   = 6
	usernameSuffixChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	passwordLength      = 12
	maxUsernameAttempts = 10
	passwordUpperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	passwordLowerChars  = "abcdefghijkmnpqrstuvwxyz"
	passwordDigitChars  = "23456789"
	passwordSymbolChars = "!@#$%^&*"
	passwordAllChars    = passwordUpperChars + passwordLowerChars + passwordDigitChars + passwordSymbolChars
)

// Credentials is a freshly generated PPPoE login. The plaintext password only
// exists here; at rest it is stored encrypted.
type Credentials struct {
	Username string
	Password string
}

// UsernameExistsFunc reports whether a PPPoE username is already taken.
type UsernameExistsFunc func(username string) (bool, error)

// GenerateCredentials builds a unique PPPoE username and a random password.
// Username collisions are regenerated up to a fixed cap, then the whole
// operation fails rather than loop forever.
func GenerateCredentials(now time.Time, exists UsernameExistsFunc) (*Credentials, error) {
	var username string
	for attempt := 0; ; attempt++ {
		if attempt >= maxUsernameAttempts {
			return nil, fmt.Errorf("could not find a free pppoe username after %d attempts", maxUsernameAttempts)
		}

		candidate, err := generateUsername(now)
		if err != nil {
			return nil, err
		}

		taken, err := exists(candidate)
		if err != nil {
			return nil, fmt.Errorf("username uniqueness check failed: %w", err)
		}
		if !taken {
			username = candidate
			break
		}
	}

	password, err := generatePassword()
	if err != nil {
		return nil, err
	}

	return &Credentials{Username: username, Password: password}, nil
}

// generateUsername builds pppoe_{YYYYMMDD}_{6 random chars}.
func generateUsername(now time.Time) (string, error) {
	suffix := make([]byte, usernameSuffixLen)
	for i := range suffix {
		c, err := randomChar(usernameSuffixChars)
		if err != nil {
			return "", err
		}
		suffix[i] = c
	}
	return fmt.Sprintf("pppoe_%s_%s", now.Format("20060102"), string(suffix)), nil
}

// generatePassword builds a 12 char password guaranteed to contain at least
// one uppercase, lowercase, digit and symbol, in shuffled positions.
func generatePassword() (string, error) {
	password := make([]byte, 0, passwordLength)

	for _, class := range []string{passwordUpperChars, passwordLowerChars, passwordDigitChars, passwordSymbolChars} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	for len(password) < passwordLength {
		c, err := randomChar(passwordAllChars)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	// Fisher-Yates so the guaranteed-class chars are not predictable prefixes.
	for i := len(password) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := n.Int64()
		password[i], password[j] = password[j], password[i]
	}

	return string(password), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
