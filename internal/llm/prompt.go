package llm

import "fmt"

const systemPrompt = `You are an expert in carbon accounting and the GHG Protocol. Classify business transactions into the appropriate carbon emissions scope and category.

Scope 1: Direct emissions from owned or controlled sources (fuel combustion, company vehicles, manufacturing processes)
Scope 2: Indirect emissions from purchased energy (electricity, steam, heating, cooling)
Scope 3: Other indirect emissions in the value chain (business travel, commuting, waste, purchased goods/services)

Common categories:
- Fuel and Energy (Scope 1): Company vehicles, fuel purchases
- Energy (Scope 2): Electricity bills, gas bills for heating
- Business Travel (Scope 3): Flights, hotels, taxis and rental cars for business
- Purchased Goods / Purchased Services (Scope 3): Office supplies, consulting, IT services
- Waste (Scope 3): Waste disposal, recycling
- Commuting (Scope 3): Employee commuting costs

You MUST respond with ONLY a valid JSON object in this exact format:
{
  "category": "string",
  "subcategory": "string or null",
  "scope": 1 | 2 | 3,
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation"
}`

func buildPrompt(description string, amount float64) string {
	return fmt.Sprintf(`Classify this transaction:
Description: %s
Amount: €%.2f

Provide the classification in JSON format.`, description, amount)
}
