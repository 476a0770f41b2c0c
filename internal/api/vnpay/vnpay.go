// Package vnpay builds signed VnPay payment redirect URLs and verifies the
// signature on gateway return callbacks.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/trongdv/bookstore/pkg/errors"

	"github.com/trongdv/bookstore/internal/api/domain"
)

// createDateLayout is the gateway's timestamp format (yyyyMMddHHmmss).
const createDateLayout = "20060102150405"

// Config holds merchant credentials and the fixed gateway parameters.
type Config struct {
	TmnCode    string
	HashSecret string
	BaseURL    string
	ReturnURL  string
	Version    string
	Command    string
	CurrCode   string
	Locale     string
	OrderType  string
}

// Signer produces and verifies VnPay request signatures.
type Signer struct {
	cfg Config
}

// NewSigner creates a Signer for the given merchant configuration.
func NewSigner(cfg Config) *Signer {
	return &Signer{cfg: cfg}
}

// BuildRedirectURL assembles the signed payment URL for an order. The amount
// is the order total in minor units (VND x 100), summed over lines deduplicated
// by line ID, while the quantity shown in the order description counts every
// line as-is.
func (s *Signer) BuildRedirectURL(order *domain.Order, ipAddr string, createdAt time.Time) string {
	var (
		total    float64
		totalQty int
		seen     = make(map[int64]bool, len(order.Details))
	)
	for _, d := range order.Details {
		totalQty += d.Quantity
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		total += float64(d.Quantity) * d.Price
	}
	amount := int64(math.Round(total * 100))

	params := map[string]string{
		"vnp_Amount":     strconv.FormatInt(amount, 10),
		"vnp_Command":    s.cfg.Command,
		"vnp_CreateDate": createdAt.Format(createDateLayout),
		"vnp_CurrCode":   s.cfg.CurrCode,
		"vnp_IpAddr":     ipAddr,
		"vnp_Locale":     s.cfg.Locale,
		"vnp_OrderInfo":  fmt.Sprintf("Payment for %d with amount %d", order.ID, totalQty),
		"vnp_OrderType":  s.cfg.OrderType,
		"vnp_ReturnUrl":  s.cfg.ReturnURL,
		"vnp_TmnCode":    s.cfg.TmnCode,
		"vnp_TxnRef":     strconv.FormatInt(order.ID, 10),
		"vnp_Version":    s.cfg.Version,
	}

	query := canonicalQuery(params)
	return fmt.Sprintf("%s?%s&vnp_SecureHash=%s", s.cfg.BaseURL, query, s.sign(query))
}

// ReturnParams is the outcome of a verified gateway return callback.
type ReturnParams struct {
	OrderID        int64
	Amount         int64 // minor units (VND x 100)
	ResponseCode   string
	TransactionNo  string
	BankCode       string
	PayDate        string
	SecureHashOK   bool
	PaymentSucceed bool
}

// VerifyReturn validates the signature on a gateway return callback and
// extracts the payment outcome. The canonical string is rebuilt from every
// vnp_-prefixed parameter except the hash itself and compared in constant
// time. An invalid or missing signature yields an error; the caller must not
// trust any parameter from an unverified callback.
func (s *Signer) VerifyReturn(query url.Values) (*ReturnParams, error) {
	gotHash := query.Get("vnp_SecureHash")
	if gotHash == "" {
		return nil, apperrors.PaymentFailed("payment callback missing signature")
	}

	params := make(map[string]string)
	for key := range query {
		if !strings.HasPrefix(key, "vnp_") {
			continue
		}
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		params[key] = query.Get(key)
	}

	wantHash := s.sign(canonicalQuery(params))
	if !hmac.Equal([]byte(strings.ToLower(gotHash)), []byte(wantHash)) {
		return nil, apperrors.PaymentFailed("payment callback signature mismatch")
	}

	orderID, err := strconv.ParseInt(query.Get("vnp_TxnRef"), 10, 64)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid transaction reference")
	}
	amount, _ := strconv.ParseInt(query.Get("vnp_Amount"), 10, 64)

	responseCode := query.Get("vnp_ResponseCode")
	return &ReturnParams{
		OrderID:        orderID,
		Amount:         amount,
		ResponseCode:   responseCode,
		TransactionNo:  query.Get("vnp_TransactionNo"),
		BankCode:       query.Get("vnp_BankCode"),
		PayDate:        query.Get("vnp_PayDate"),
		SecureHashOK:   true,
		PaymentSucceed: responseCode == "00",
	}, nil
}

// canonicalQuery renders parameters sorted by key as key=urlencoded(value)
// joined with ampersands. This exact byte string is what gets signed.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// sign computes the lowercase hex HMAC-SHA512 of data under the merchant secret.
func (s *Signer) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(s.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
