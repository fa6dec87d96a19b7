package kyc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/htams/backend/internal/config"
)

// KYCClient talks to the external Aadhaar-OTP identity verifier. The service
// is treated as opaque: we send an identity number or an OTP plus request id
// and get back a status with the verified identity fields, nothing more.
type KYCClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewKYCClient creates a new KYC client from configuration
func NewKYCClient(cfg config.KYCConfig) *KYCClient {
	return &KYCClient{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// OTPRequest asks the verifier to send an OTP for an identity number
type OTPRequest struct {
	IdentityNumber string `json:"identity_number"`
}

// OTPResponse carries the verifier's request id for the follow-up verify call
type OTPResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Message   string `json:"message,omitempty"`
}

// VerifyRequest submits the OTP the user received
type VerifyRequest struct {
	RequestID string `json:"request_id"`
	OTP       string `json:"otp"`
}

// VerifiedIdentity is the identity data returned on successful verification
type VerifiedIdentity struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Gender  string `json:"gender"`
	DOB     string `json:"dob"`
	Message string `json:"message,omitempty"`
}

// GenerateOTP starts a verification and returns the verifier's request id
func (c *KYCClient) GenerateOTP(identityNumber string) (*OTPResponse, error) {
	var out OTPResponse
	if err := c.post("/otp/generate", OTPRequest{IdentityNumber: identityNumber}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("kyc otp generation failed: %s", out.Message)
	}
	return &out, nil
}

// VerifyOTP completes a verification and returns the verified identity
func (c *KYCClient) VerifyOTP(requestID, otp string) (*VerifiedIdentity, error) {
	var out VerifiedIdentity
	if err := c.post("/otp/verify", VerifyRequest{RequestID: requestID, OTP: otp}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("kyc verification failed: %s", out.Message)
	}
	return &out, nil
}

func (c *KYCClient) post(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal kyc request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build kyc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("kyc service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("kyc service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode kyc response: %w", err)
	}

	return nil
}
