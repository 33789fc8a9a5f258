package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"math"
)

// ESewaSignedFieldNames lists the signed form fields in the order SignESewa joins them.
const ESewaSignedFieldNames = "total_amount,transaction_uuid,product_code"

// SignESewa returns base64(HMAC-SHA256(secret, "total_amount=..,transaction_uuid=..,product_code=..")).
func SignESewa(secret, totalAmount, transactionUUID, productCode string) string {
	msg := "total_amount=" + totalAmount +
		",transaction_uuid=" + transactionUUID +
		",product_code=" + productCode
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// KhaltiAuthorization is the Authorization header value for Khalti calls.
func KhaltiAuthorization(secret string) string {
	return "Key " + secret
}

// ToPaisa converts rupees to paisa, rounding half away from zero.
func ToPaisa(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
