package asaas

import "encoding/json"

// Wire shapes of the Asaas v3 API. Nothing outside this package sees them.

type customerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
	Deleted bool   `json:"deleted"`
}

type customerListResponse struct {
	Data       []customerResponse `json:"data"`
	TotalCount int                `json:"totalCount"`
}

type createCustomerRequest struct {
	Name                 string `json:"name"`
	CpfCnpj              string `json:"cpfCnpj"`
	Email                string `json:"email"`
	Phone                string `json:"phone,omitempty"`
	MobilePhone          string `json:"mobilePhone,omitempty"`
	NotificationDisabled bool   `json:"notificationDisabled"`
	ExternalReference    string `json:"externalReference,omitempty"`
}

type creditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

// The donation form does not collect an address; Asaas still requires these fields.
type creditCardHolderInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CpfCnpj       string `json:"cpfCnpj"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	Phone         string `json:"phone,omitempty"`
	MobilePhone   string `json:"mobilePhone,omitempty"`
}

type tokenizeRequest struct {
	Customer             string               `json:"customer"`
	CreditCard           creditCard           `json:"creditCard"`
	CreditCardHolderInfo creditCardHolderInfo `json:"creditCardHolderInfo"`
	RemoteIP             string               `json:"remoteIp,omitempty"`
}

type tokenizeResponse struct {
	CreditCardNumber string `json:"creditCardNumber"`
	CreditCardBrand  string `json:"creditCardBrand"`
	CreditCardToken  string `json:"creditCardToken"`
}

// paymentRequest deliberately has no creditCard field: cards are charged by token only.
type paymentRequest struct {
	Customer          string      `json:"customer"`
	BillingType       string      `json:"billingType"`
	Value             json.Number `json:"value,omitempty"`
	TotalValue        json.Number `json:"totalValue,omitempty"`
	InstallmentCount  int         `json:"installmentCount,omitempty"`
	DueDate           string      `json:"dueDate"`
	Description       string      `json:"description"`
	ExternalReference string      `json:"externalReference"`
	CreditCardToken   string      `json:"creditCardToken,omitempty"`
	RemoteIP          string      `json:"remoteIp,omitempty"`
	PostalService     *bool       `json:"postalService,omitempty"`
}

type paymentResponse struct {
	ID                    string  `json:"id"`
	Status                string  `json:"status"`
	BillingType           string  `json:"billingType"`
	Value                 float64 `json:"value"`
	DueDate               string  `json:"dueDate"`
	ExternalReference     string  `json:"externalReference"`
	InvoiceURL            string  `json:"invoiceUrl"`
	BankSlipURL           string  `json:"bankSlipUrl"`
	TransactionReceiptURL string  `json:"transactionReceiptUrl"`
}

type pixQrCodeResponse struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

type identificationFieldResponse struct {
	IdentificationField string `json:"identificationField"`
	NossoNumero         string `json:"nossoNumero"`
	BarCode             string `json:"barCode"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}
