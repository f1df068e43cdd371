package prompt

import (
	"fmt"
	"strings"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are an expert credit report analyst specializing in FCRA (Fair Credit Reporting Act) violations and consumer credit rights. Analyze the provided credit report PDF(s) and identify:

1. Credit Score information
2. Payment history analysis
3. Credit utilization
4. Account details with potential issues
5. FCRA violations (inaccurate info, outdated items, duplicate entries, missing disclosures, etc.)
6. Cross-bureau discrepancies if multiple reports provided
7. Legal case summary with compensation potential
8. Actionable recommendations

Be thorough and identify ALL potential violations. For each violation, explain the legal basis and potential remedies.

IMPORTANT: Return your analysis as a JSON object with this exact structure:
{
  "creditScore": {
    "current": number or null,
    "range": "string",
    "factors": ["string"]
  },
  "paymentHistory": {
    "onTimePayments": number,
    "latePayments": number,
    "missedPayments": number,
    "totalAccounts": number,
    "percentageOnTime": number
  },
  "creditUtilization": {
    "totalCredit": number,
    "usedCredit": number,
    "utilizationPercentage": number,
    "recommendation": "string"
  },
  "accounts": [{
    "name": "string",
    "type": "string",
    "balance": number,
    "creditLimit": number,
    "status": "string",
    "paymentStatus": "string",
    "remarks": "string",
    "potentialViolation": "string or null",
    "bureaus": ["string"],
    "crossBureauDiscrepancy": "string or null"
  }],
  "fcraViolations": [{
    "violationType": "string",
    "severity": "High/Medium/Low",
    "accountName": "string",
    "issue": "string",
    "legalBasis": "string",
    "bureausAffected": ["string"],
    "crossBureauDetails": "string or null",
    "description": "string",
    "actionableSteps": "string",
    "legalCompensationPotential": "string"
  }],
  "recommendations": [{
    "priority": "High/Medium/Low",
    "title": "string",
    "description": "string",
    "potentialImpact": "string"
  }],
  "legalCaseSummary": {
    "totalViolationsFound": number,
    "highPriorityViolations": number,
    "estimatedCompensationPotential": "string",
    "attorneyReferralRecommended": boolean,
    "nextSteps": "string"
  },
  "summary": "string"
}`
}

// GetUserPrompt names the bureaus whose reports accompany the request.
func GetUserPrompt(bureaus []string) string {
	return fmt.Sprintf("Please analyze the following %d credit report(s) from: %s.",
		len(bureaus), strings.Join(bureaus, ", "))
}

// GetFileLabel is the text part placed directly after each document part.
func GetFileLabel(bureau string) string {
	return fmt.Sprintf("The above PDF is the %s credit report.", strings.ToUpper(bureau))
}
