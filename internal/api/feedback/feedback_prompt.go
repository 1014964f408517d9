package feedback

import (
	"fmt"

	"github.com/agrimind/farm-assist/internal/types"
)

// analysisSystemPrompt pins the model into JSON-only answers.
const analysisSystemPrompt = "You are an agricultural expert analyzing farmer actions. Respond only with valid JSON."

// analysisPrompt builds the interpretation prompt for a farmer's report. The
// few-shot examples anchor the JSON shape and the severity scale.
func analysisPrompt(plannedAction, farmerResponse, taskDescription string) string {
	return fmt.Sprintf(`You are analyzing farmer feedback to an agricultural task.

PLANNED ACTION: %s
TASK DESCRIPTION: %s

FARMER'S RESPONSE: %s

Your job is to determine:
1. Did the farmer complete the task as planned? (yes/no/delayed)
2. If not, what did they actually do?
3. Is this a deviation that requires plan adjustment? (yes/no)
4. How severe is the deviation? (minor/moderate/major/none)
5. Brief impact summary (1-2 sentences)

Respond ONLY with JSON in this exact format:
{
    "completed_as_planned": true/false,
    "actual_action": "what farmer actually did",
    "is_deviation": true/false,
    "deviation_type": "fertilizer_change/delay/method_change/quantity_change/none",
    "severity": "none/minor/moderate/major",
    "impact_summary": "brief impact description",
    "requires_agent_response": true/false
}

Examples:

PLANNED: Apply 50kg urea fertilizer
FARMER: I applied it yesterday
RESPONSE: {"completed_as_planned": true, "actual_action": "Applied 50kg urea", "is_deviation": false, "deviation_type": "none", "severity": "none", "impact_summary": "Task completed as planned", "requires_agent_response": false}

PLANNED: Apply 50kg urea fertilizer
FARMER: I used cow dung instead because urea was expensive
RESPONSE: {"completed_as_planned": false, "actual_action": "Applied cow dung instead of urea", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "Organic fertilizer substitution - lower nitrogen content but improves soil health", "requires_agent_response": true}

PLANNED: Water plants 2 liters per day
FARMER: I forgot yesterday but watered double today
RESPONSE: {"completed_as_planned": false, "actual_action": "Skipped one day, compensated with double watering", "is_deviation": true, "deviation_type": "delay", "severity": "minor", "impact_summary": "Temporary water stress but compensated", "requires_agent_response": false}

Now analyze the farmer's response above and return ONLY the JSON, nothing else.`,
		plannedAction, taskDescription, farmerResponse)
}

// AdaptationPrompt renders a recorded deviation into the advisory request
// sent to the assistant model when the analysis calls for an agent response.
func AdaptationPrompt(record *types.DeviationRecord, currentPlan, cropType string) string {
	return fmt.Sprintf(`DEVIATION DETECTED in %s crop plan:

PLANNED ACTION: %s
ACTUAL ACTION: %s
DEVIATION TYPE: %s
SEVERITY: %s
IMPACT: %s

CURRENT PLAN:
%s

Please analyze this deviation and:
1. Assess the impact on crop yield and timeline
2. Recommend adaptations to the plan
3. Create any new tasks needed to compensate
4. Provide guidance to the farmer in supportive language

Respond with your analysis and recommendations.`,
		cropType,
		record.PlannedAction,
		record.Analysis.ActualAction,
		record.Analysis.DeviationType,
		record.Analysis.Severity,
		record.Analysis.ImpactSummary,
		currentPlan)
}
