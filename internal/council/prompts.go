package council

import (
	"fmt"
	"strings"
)

// buildRankingPrompt asks a ranker to evaluate all anonymized responses and
// finish with a strict "FINAL RANKING:" list covering every label.
func buildRankingPrompt(userQuery string, labeled []anonymized) string {
	var responsesText strings.Builder
	for _, a := range labeled {
		responsesText.WriteString(fmt.Sprintf("%s:\n%s\n\n", a.Label, a.Response.Response))
	}

	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list ALL responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Every response must appear exactly once; do not omit or repeat any label
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, userQuery, responsesText.String())
}

// buildChairmanPrompt gives the chairman the original question, the
// de-anonymized Stage-1 answers, and the aggregate peer rankings, and asks
// for a single cited synthesis. Anonymity ends here: its purpose was to keep
// Stage-2 ranking unbiased.
func buildChairmanPrompt(userQuery string, stage1 []Stage1Response, aggregate []AggregateRanking, hasContext bool) string {
	var stage1Text strings.Builder
	for _, result := range stage1 {
		stage1Text.WriteString(fmt.Sprintf("Model: %s\nResponse: %s\n\n", result.Model, result.Response))
	}

	var rankingText strings.Builder
	if len(aggregate) == 0 {
		rankingText.WriteString("No peer rankings are available for this question.\n")
	} else {
		for i, agg := range aggregate {
			rankingText.WriteString(fmt.Sprintf("%d. %s (average rank %.2f across %d rankings)\n",
				i+1, agg.Model, agg.AverageRank, agg.RankingsCount))
		}
	}

	citationNote := "Cite specific law sections and Supreme Court case numbers where the responses support them."
	if hasContext {
		citationNote = "Cite the retrieved legal documents referenced in the responses, naming specific law sections and Supreme Court case numbers."
	}

	return fmt.Sprintf(`You are the Chairman of a legal LLM Council. Multiple AI models have provided responses to a user's legal question, and then ranked each other's responses without knowing who wrote what.

Original Question: %s

STAGE 1 - Individual Responses:
%s
STAGE 2 - Aggregate Peer Rankings (best first):
%s
Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

%s

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`,
		userQuery, stage1Text.String(), rankingText.String(), citationNote)
}

// buildTitlePrompt asks for a 3-5 word conversation title.
func buildTitlePrompt(userQuery string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)
}
