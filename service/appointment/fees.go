package appointment

// Consultation fees in INR by specialization. The fee is fixed on the
// appointment row at booking time and never recomputed.
var consultationFees = map[string]float64{
	"Cardiologist":      1000,
	"Neurologist":       1200,
	"Dermatologist":     800,
	"Orthopedic":        900,
	"Pediatrician":      600,
	"Psychiatrist":      1100,
	"Gynecologist":      900,
	"ENT Specialist":    700,
	"General Physician": 500,
}

const defaultConsultationFee = 500

// FeeForSpecialization resolves the booking fee. Unknown
// specializations fall back to the default fee.
func FeeForSpecialization(specialization string) float64 {
	if fee, ok := consultationFees[specialization]; ok {
		return fee
	}
	return defaultConsultationFee
}
