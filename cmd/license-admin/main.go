package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"snappy-license-server/internal/license"
)

func main() {
	fmt.Println("========================================")
	fmt.Println(" License Administration Tool")
	fmt.Println("========================================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Generate single license key")
		fmt.Println("  2. Generate batch license keys")
		fmt.Println("  3. Check a license key")
		fmt.Println("  4. Show plan pricing")
		fmt.Println("  5. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch input {
		case "1":
			generateSingleKey(reader)
		case "2":
			generateBatchKeys(reader)
		case "3":
			checkKey(reader)
		case "4":
			showPlanPricing()
		case "5":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func generateSingleKey(reader *bufio.Reader) {
	fmt.Println("\n--- Generate License Key ---")

	key, err := license.GenerateKey()
	if err != nil {
		fmt.Printf("Failed to generate key: %s\n", err)
		return
	}

	now := time.Now().UTC()
	expiry := license.CalculateExpiry(now)

	fmt.Println("\n========================================")
	fmt.Printf("  License Key: %s\n", key)
	fmt.Printf("  Generated:   %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Expires:     %s (if activated now)\n", expiry.Format("2006-01-02"))
	fmt.Println("========================================")

	// Optionally save to file
	fmt.Print("\nSave to file? (y/n): ")
	save, _ := reader.ReadString('\n')
	if strings.TrimSpace(strings.ToLower(save)) == "y" {
		filename := fmt.Sprintf("license_%s.txt", now.Format("20060102_150405"))
		content := fmt.Sprintf("License Key: %s\nGenerated: %s\n", key, now.Format("2006-01-02 15:04:05"))
		os.WriteFile(filename, []byte(content), 0644)
		fmt.Printf("Saved to: %s\n", filename)
	}
}

func generateBatchKeys(reader *bufio.Reader) {
	fmt.Println("\n--- Generate Batch License Keys ---")
	fmt.Print("How many keys to generate? ")

	countInput, _ := reader.ReadString('\n')
	count, err := strconv.Atoi(strings.TrimSpace(countInput))
	if err != nil || count < 1 || count > 100 {
		fmt.Println("Invalid count (1-100)")
		return
	}

	fmt.Printf("\nGenerating %d license keys...\n", count)
	fmt.Println("========================================")

	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		key, err := license.GenerateKey()
		if err != nil {
			fmt.Printf("Failed to generate key: %s\n", err)
			return
		}
		keys = append(keys, key)
		fmt.Printf("  %d. %s\n", i+1, key)
	}
	fmt.Println("========================================")

	// Save to file
	filename := fmt.Sprintf("licenses_%s.txt", time.Now().Format("20060102_150405"))
	var content strings.Builder
	content.WriteString("# License Keys\n")
	content.WriteString(fmt.Sprintf("# Generated: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	content.WriteString(fmt.Sprintf("# Count: %d\n\n", count))
	for i, key := range keys {
		content.WriteString(fmt.Sprintf("%d. %s\n", i+1, key))
	}
	os.WriteFile(filename, []byte(content.String()), 0644)
	fmt.Printf("\nSaved to: %s\n", filename)
}

func checkKey(reader *bufio.Reader) {
	fmt.Println("\n--- Check License Key ---")
	fmt.Print("Enter license key: ")

	key, _ := reader.ReadString('\n')
	key = strings.TrimSpace(key)

	fmt.Println("\n========================================")
	if !license.ValidKeyFormat(key) {
		fmt.Println("  Format:  INVALID")
		fmt.Printf("  Expected: %s-XXXXXXXXXXXXXXXX (16 hex digits)\n", license.KeyPrefix)
		fmt.Println("========================================")
		return
	}
	fmt.Println("  Format:  VALID")

	fmt.Print("\nActivation date (YYYY-MM-DD, blank to skip): ")
	dateInput, _ := reader.ReadString('\n')
	dateInput = strings.TrimSpace(dateInput)
	if dateInput != "" {
		activatedAt, err := time.Parse("2006-01-02", dateInput)
		if err != nil {
			fmt.Printf("  Invalid date: %s\n", err)
		} else {
			expiry := license.CalculateExpiry(activatedAt)
			days := license.DaysRemaining(expiry, time.Now().UTC())
			fmt.Printf("  Expires: %s\n", expiry.Format("2006-01-02"))
			fmt.Printf("  Days remaining: %d\n", days)
		}
	}
	fmt.Println("========================================")
}

func showPlanPricing() {
	fmt.Println("\n========================================")
	fmt.Println(" Plan Pricing Overview")
	fmt.Println("========================================")

	pricing := license.DefaultPricing
	plans := []license.Plan{license.PlanStarter, license.PlanPro, license.PlanEnterprise}

	for _, p := range plans {
		amount := pricing.Amount(p)
		fmt.Printf("\n%s\n", strings.ToUpper(string(p)))
		fmt.Printf("  Price: ₹%.2f (%d paise)\n", float64(amount)/100, amount)
		fmt.Println("  Validity: 1 year from activation")
	}
	fmt.Println()
}
