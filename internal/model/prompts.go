package model

import "github.com/dusk-indust/deepresearch/internal/schema"

var instructions = map[schema.Name]string{
	schema.NameClarifyWithUser: `You decide whether a research request is specific enough to start.
Ask a clarifying question only when the scope, an acronym, or the expected output is genuinely unclear,
and never ask again about something the conversation already answers.
Respond with need_clarification, question and verification. When you ask, put the question in
"question" and leave "verification" empty. When you do not ask, leave "question" empty and
acknowledge in "verification" that research will start.`,

	schema.NameResearchQuestion: `Turn the conversation into a single detailed research brief written in the first person
from the user's point of view. Keep every constraint the user stated. Leave open what the user left open.
Respond with research_brief.`,

	schema.NameResearchPlan: `You supervise a research project. Read the brief and the findings gathered so far.
Either list the next self-contained sub-research topics to investigate in parallel, or set complete to true
when the findings are sufficient to write a thorough report. Do not repeat topics already researched.
Respond with topics, complete and an optional rationale.`,

	schema.NameResearchFindings: `Research the given topic thoroughly. Respond with a short summary and a list of notes,
one finding per entry, with sources where you have them.`,

	schema.NameFinalReport: `Write the final research report in markdown from the notes provided.
Organise it under clear headings, keep every finding that bears on the brief, and end with a sources section
when the notes carry sources. Respond with report.`,
}
