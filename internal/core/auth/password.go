package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	SaltBytes             = 32 // 256 bit
	DefaultPasswordLength = 10
	passwordAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()"
)

// GenerateSalt 返回 base64 编码的 256 位随机盐
func GenerateSalt() (string, error) {
	b := make([]byte, SaltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// HashPassword HMAC-SHA512(key=salt, msg=password)，输出 base64
func HashPassword(password, salt string) (string, error) {
	sum, err := hashRaw(password, salt)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// VerifyPassword 常量时间比较，任何格式错误都视为不匹配
func VerifyPassword(password, storedHash, storedSalt string) bool {
	want, err := base64.StdEncoding.DecodeString(storedHash)
	if err != nil {
		return false
	}
	got, err := hashRaw(password, storedSalt)
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}

func hashRaw(password, salt string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("decode salt: empty")
	}
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(password))
	return mac.Sum(nil), nil
}

// NewCredential 生成新盐并计算哈希
func NewCredential(password string) (hash, salt string, err error) {
	salt, err = GenerateSalt()
	if err != nil {
		return "", "", err
	}
	hash, err = HashPassword(password, salt)
	if err != nil {
		return "", "", err
	}
	return hash, salt, nil
}

// RandomPassword 从字母/数字/固定符号集中均匀抽取
func RandomPassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
