package transport

// UpdateSettingsRequest is a partial update; nil fields are left unchanged.
type UpdateSettingsRequest struct {
	EmailMasterEnabled         *bool   `json:"emailMasterEnabled"`
	ReviewDripEnabled          *bool   `json:"reviewDripEnabled"`
	ReferralNurturePhone       *string `json:"referralNurturePhone" validate:"omitempty,usphone"`
	CompanyName                *string `json:"companyName" validate:"omitempty,min=1,max=200"`
	WebsiteURL                 *string `json:"websiteUrl" validate:"omitempty,url"`
	VoucherMinimumJobCents     *int64  `json:"voucherMinimumJobCents" validate:"omitempty,min=0"`
	VoucherExpiryDays          *int    `json:"voucherExpiryDays" validate:"omitempty,min=1,max=3650"`
	ReferralCreditDefaultCents *int64  `json:"referralCreditDefaultCents" validate:"omitempty,min=0"`
}
