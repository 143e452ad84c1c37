// Package seed generates the deterministic synthetic Singapore insurance dataset
// used for local development, demos and tests.
package seed

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ashita-ai/insureai/internal/model"
)

// DefaultCustomers is the dataset size used when none is configured.
const DefaultCustomers = 1000

// DefaultSeed makes every generated dataset identical for the same size and clock.
const DefaultSeed = 42

const dateLayout = "2006-01-02"

// Dataset is a complete set of rows ready to be loaded into a store.
type Dataset struct {
	Customers []model.Customer
	Policies  []model.Policy
	Vehicles  []model.VehicleDetail
	Bills     []model.Bill
	Payments  []model.Payment
	Claims    []model.Claim
}

// Options controls generation.
type Options struct {
	Customers int
	Seed      uint64
	Now       time.Time
}

var (
	firstNames = []string{
		"Wei", "Ming", "Hui", "Jia", "Xin", "Yu", "Chen", "Li", "Yan", "Mei",
		"Ahmad", "Muhammad", "Siti", "Nurul", "Aisha", "Kumar", "Raj", "Priya",
		"David", "Sarah", "Michael", "John", "Mary", "James", "Emma", "Daniel",
	}
	lastNames = []string{
		"Tan", "Lim", "Lee", "Ng", "Wong", "Goh", "Chua", "Chan", "Koh", "Teo",
		"Ibrahim", "Abdullah", "Hassan", "Singh", "Kumar", "Sharma", "Nair",
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Davis", "Miller",
	}
	regions            = []string{"Central", "East", "West", "North", "North-East"}
	policyTypes        = []string{model.PolicyTypeMotor, model.PolicyTypeLife, model.PolicyTypeHealth, model.PolicyTypeHome, model.PolicyTypeTravel}
	billingFrequencies = []string{"Monthly", "Quarterly", "Annually"}
	policyStatuses     = []string{"Active", "Active", "Active", "Lapsed", "Cancelled"}
	billStatuses       = []string{"paid", "paid", "paid", "pending", "overdue"}
	claimStatuses      = []string{"Pending", "Approved", "Rejected", "Under Review", "Paid"}
	paymentMethods     = []string{"Credit Card", "PayNow", "GIRO", "Bank Transfer", "Cash"}
	claimDescriptions  = []string{
		"Vehicle accident damage", "Medical expenses claim", "Property damage",
		"Theft claim", "Water damage", "Fire damage", "Personal injury",
	}
	vehicleMakes   = []string{"Toyota", "Honda", "Hyundai", "BMW", "Mercedes", "Mazda", "Kia", "Nissan"}
	vehicleModels  = []string{"Corolla", "Civic", "Elantra", "3 Series", "C-Class", "3", "Cerato", "Altima"}
	coverageTypes  = []string{"Comprehensive", "Third Party", "Third Party Fire & Theft"}
	deductibles    = []float64{500, 750, 1000, 1500}
	liabilityLimit = []float64{50000, 100000, 150000, 200000}
)

type area struct {
	name   string
	postal string
}

var regionAreas = map[string]struct {
	areas   []area
	streets []string
}{
	"Central": {
		areas:   []area{{"Toa Payoh", "31"}, {"Bishan", "57"}, {"Ang Mo Kio", "56"}, {"Queenstown", "03"}, {"Bukit Merah", "15"}, {"Novena", "32"}, {"Marine Parade", "44"}},
		streets: []string{"Lorong", "Avenue", "Street", "Road"},
	},
	"East": {
		areas:   []area{{"Bedok", "46"}, {"Tampines", "52"}, {"Pasir Ris", "51"}, {"Changi", "50"}, {"Simei", "52"}, {"Kembangan", "46"}},
		streets: []string{"Street", "Avenue", "Road", "Drive"},
	},
	"West": {
		areas:   []area{{"Jurong East", "60"}, {"Jurong West", "64"}, {"Clementi", "12"}, {"Bukit Batok", "65"}, {"Choa Chu Kang", "68"}, {"Bukit Panjang", "67"}},
		streets: []string{"Street", "Avenue", "Road", "Drive"},
	},
	"North": {
		areas:   []area{{"Woodlands", "73"}, {"Yishun", "76"}, {"Sembawang", "75"}, {"Admiralty", "75"}},
		streets: []string{"Street", "Avenue", "Drive", "Road"},
	},
	"North-East": {
		areas:   []area{{"Sengkang", "54"}, {"Punggol", "82"}, {"Hougang", "53"}, {"Serangoon", "55"}, {"Ang Mo Kio", "56"}},
		streets: []string{"Street", "Avenue", "Drive", "Way"},
	},
}

type generator struct {
	rng *rand.Rand
	now time.Time
}

func pick[T any](g *generator, xs []T) T { return xs[g.rng.IntN(len(xs))] }

// between returns a uniform int in [lo, hi].
func (g *generator) between(lo, hi int) int { return lo + g.rng.IntN(hi-lo+1) }

func (g *generator) money(lo, hi float64) float64 {
	return math.Round((lo+g.rng.Float64()*(hi-lo))*100) / 100
}

func (g *generator) daysAgo(lo, hi int) time.Time {
	return g.now.AddDate(0, 0, -g.between(lo, hi))
}

// Generate builds a dataset. Zero-valued options fall back to the defaults.
func Generate(opts Options) Dataset {
	if opts.Customers <= 0 {
		opts.Customers = DefaultCustomers
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	g := &generator{
		rng: rand.New(rand.NewPCG(opts.Seed, opts.Seed)), //nolint:gosec // synthetic data
		now: opts.Now.UTC().Truncate(24 * time.Hour),
	}

	var ds Dataset
	customerIDs := make([]string, 0, opts.Customers)
	for i := range opts.Customers {
		c := g.customer(i)
		ds.Customers = append(ds.Customers, c)
		customerIDs = append(customerIDs, c.CustomerID)
	}

	policyCount := opts.Customers * 3 / 2
	policyNumbers := make([]string, 0, policyCount)
	for i := range policyCount {
		// Every customer owns at least one policy; the rest are spread at random.
		owner := customerIDs[i%len(customerIDs)]
		if i >= len(customerIDs) {
			owner = pick(g, customerIDs)
		}
		p := g.policy(i, owner)
		ds.Policies = append(ds.Policies, p)
		policyNumbers = append(policyNumbers, p.PolicyNumber)
		if p.PolicyType == model.PolicyTypeMotor {
			ds.Vehicles = append(ds.Vehicles, g.vehicle(p.PolicyNumber))
		}
	}

	for _, p := range ds.Policies {
		for range g.between(1, 6) {
			billDate := g.daysAgo(0, 365)
			b := model.Bill{
				BillID:       fmt.Sprintf("BILL%06d", len(ds.Bills)+1),
				PolicyNumber: p.PolicyNumber,
				BillingDate:  billDate.Format(dateLayout),
				DueDate:      billDate.AddDate(0, 0, 30).Format(dateLayout),
				Amount:       p.PremiumAmount,
				Status:       pick(g, billStatuses),
			}
			ds.Bills = append(ds.Bills, b)
			if b.Status == "paid" {
				ds.Payments = append(ds.Payments, model.Payment{
					PaymentID:     fmt.Sprintf("PAY%06d", len(ds.Payments)+1),
					BillID:        b.BillID,
					PaymentDate:   billDate.AddDate(0, 0, g.between(1, 25)).Format(dateLayout),
					Amount:        b.Amount,
					Status:        "completed",
					PaymentMethod: pick(g, paymentMethods),
				})
			}
		}
	}

	for i := range opts.Customers * 3 / 10 {
		ds.Claims = append(ds.Claims, model.Claim{
			ClaimID:      fmt.Sprintf("CLM%06d", i+1),
			PolicyNumber: pick(g, policyNumbers),
			ClaimDate:    g.daysAgo(0, 365).Format(dateLayout),
			ClaimAmount:  g.money(500, 50000),
			Status:       pick(g, claimStatuses),
			Description:  pick(g, claimDescriptions),
		})
	}
	return ds
}

func (g *generator) customer(i int) model.Customer {
	birthYear := g.between(1950, 2005)
	dob := time.Date(birthYear, time.Month(g.between(1, 12)), g.between(1, 28), 0, 0, 0, 0, time.UTC)
	region := pick(g, regions)
	address, postal := g.address(region)
	return model.Customer{
		CustomerID:  fmt.Sprintf("CUST%05d", i+1),
		NRIC:        g.nric(birthYear, i),
		FirstName:   pick(g, firstNames),
		LastName:    pick(g, lastNames),
		Email:       fmt.Sprintf("customer%d@email.com", i+1),
		Phone:       fmt.Sprintf("%s%07d", pick(g, []string{"8", "9"}), g.between(1000000, 9999999)),
		DateOfBirth: dob.Format(dateLayout),
		Address:     address,
		PostalCode:  postal,
		Region:      region,
	}
}

func (g *generator) policy(i int, owner string) model.Policy {
	return model.Policy{
		PolicyNumber:     fmt.Sprintf("POL%06d", i+1),
		CustomerID:       owner,
		PolicyType:       pick(g, policyTypes),
		StartDate:        g.daysAgo(30, 1095).Format(dateLayout),
		PremiumAmount:    g.money(50, 500),
		BillingFrequency: pick(g, billingFrequencies),
		Status:           pick(g, policyStatuses),
	}
}

func (g *generator) vehicle(policyNumber string) model.VehicleDetail {
	const plateLetters = "ABCDEFGHJK"
	const suffixLetters = "ABCDEFGHJKLMNPRSTUXYZ"
	plate := fmt.Sprintf("S%c%c%04d%c",
		plateLetters[g.rng.IntN(len(plateLetters))],
		plateLetters[g.rng.IntN(len(plateLetters))],
		g.between(1, 9999),
		suffixLetters[g.rng.IntN(len(suffixLetters))],
	)
	return model.VehicleDetail{
		PolicyNumber:   policyNumber,
		VIN:            fmt.Sprintf("VIN%dSG", g.between(100000, 999999)),
		Make:           pick(g, vehicleMakes),
		Model:          pick(g, vehicleModels),
		Year:           g.between(2015, 2024),
		LicensePlate:   plate,
		CoverageType:   pick(g, coverageTypes),
		Deductible:     pick(g, deductibles),
		LiabilityLimit: pick(g, liabilityLimit),
	}
}

func (g *generator) address(region string) (full, postal string) {
	data, ok := regionAreas[region]
	if !ok {
		data = regionAreas["Central"]
	}
	a := pick(g, data.areas)
	street := pick(g, data.streets)
	postal = fmt.Sprintf("%s%02d%d", a.postal, g.between(0, 99), g.between(0, 9))
	full = fmt.Sprintf("Blk %d %s %s %d #%02d-%02d, Singapore %s",
		g.between(1, 999), a.name, street, g.between(1, 50), g.between(1, 25), g.between(1, 999), postal)
	return full, postal
}

// nric builds a Singapore NRIC/FIN with a valid check letter.
func (g *generator) nric(birthYear, index int) string {
	var prefix string
	if birthYear < 2000 {
		prefix = pick(g, []string{"S", "S", "S", "F"})
	} else {
		prefix = pick(g, []string{"T", "T", "T", "G"})
	}
	digits := fmt.Sprintf("%07d", (index*7+g.between(1000000, 9999999))%10000000)
	return prefix + digits + string(NRICCheckLetter(prefix, digits))
}

// NRICCheckLetter computes the checksum letter for a prefix and seven digits.
func NRICCheckLetter(prefix, digits string) byte {
	weights := [7]int{2, 7, 6, 5, 4, 3, 2}
	total := 0
	for i := 0; i < 7 && i < len(digits); i++ {
		total += int(digits[i]-'0') * weights[i]
	}
	letters := "JZIHGFEDCBA"
	switch prefix {
	case "T":
		total += 4
	case "F":
		letters = "XWUTRQPNMLK"
	case "G":
		letters = "XWUTRQPNMLK"
		total += 4
	}
	return letters[total%11]
}
