package overview

const structurePrompt = `
You are an academic research assistant tasked with planning a comprehensive literature review on a specific topic.

Generate appropriate search queries for each section of the literature review structure below. The goal is to retrieve relevant academic content from our knowledge base for each section.

Research Topic: %s

For each section, please provide:
1. A focused search query that will help retrieve the most relevant content from our academic database
2. Analyze the research topic whether has some condition requirements (e.g., time period, specific keywords, impact factor requirements, etc.)
    2.1 if the research topic requires a specific time period, please add 'pubdate' as a condition, which is an integer representing the timestamp(in seconds) of the public date
    2.2 if the research topic requires a specific impact factor, please add 'impact_factor' as a condition, which is a float number greater or equals to 0
    2.3 if the research topic requires one certain keyword or a group of specific keywords, and requires not to exclude any other paper without these keywords, please add 'keywords' as a condition, which is an array of strings
    2.4 conditions are only generated if the topic is required explicitly, otherwise, the conditions should be empty,
        examples:
            if the research topic is "please write a review about the topic of 'planktonic microbial community'", the conditions should be empty
            if the research topic is "please write a review about the topic of 'planktonic microbial community' and the papers should be published after 2020", the conditions should be 'pubdate >= 1577836800'
            if the research topic is "please write a review about the topic of 'planktonic microbial community' and the papers should be published after 2020 and the impact factor should be greater than 10", the conditions should be 'pubdate >= 1577836800 AND impact_factor >= 10'
            if the research topic is "please write a review about the topic of 'planktonic microbial community' from papers including 'bacteria' or 'virus'", the conditions should be 'ARRAY_CONTAINS_ANY(keywords, ["bacteria", "virus"])'
    2.5 an exception is that for emerging trends or future directions, the condition for pubdate in the latest 5 years should be added automatically

Literature Review Structure:
1. Introduction (Background & Problem Definition)
2. Theoretical Foundations (Core Theory Evolution)
3. Methodological Approaches (Methodology Landscape)
4. Key Findings & Debates (Core Discoveries & Academic Controversies)
5. Emerging Trends (Frontier Analysis)
6. Research Gaps & Future Directions (Prediction of Unexplored Areas)


Format your response as a JSON object with the following structure:
{
    "Introduction": {
        "query": "search query for introduction",
        "conditions": "condition_expression"
    },
    "Theoretical Foundations": {
        "query": "search query for theoretical foundations",
        "conditions": "condition_expression"
    },
    ...
}

Condition Syntax:
1. conditions are descripted as plain text which is similar to SQL syntax
2. for integer condition, the format is like 'pubdate >= 1741996800' (which stands for pubdate is later than 2025-03-15)
3. for float condition, the format is like 'impact_factor >= 10' (which stands for impact factor is greater or equals to 10)
4. for a range requirement, the operator can be written in a signle condition, like '1741996800 <= pubdate <= 1742083200' (which stands for pubdate is between 2025-03-15 and 2025-03-16)
5. for an array condition, the format is like 'ARRAY_CONTAINS(keywords, "keyword1")', if the multiple keywords are required,
   the format is like 'ARRAY_CONTAINS_ANY(keywords, ["keyword1", "keyword2"])' or
   'ARRAY_CONTAINS_ALL(keywords, ["keyword1", "keyword2"]) according to the detail requirement.
6. if several conditions are required, they should be connected by 'AND' or 'OR'

Ensure your queries are specific, academic in nature, and designed to retrieve comprehensive information for each section.
Output the JSON response directly without any comments or explanations.
`

const sectionGenerationPrompt = `
You are an academic writer specializing in creating comprehensive literature reviews. Based on the retrieved academic content, write a detailed section for a literature review.

Section: %s
Topic: %s

Retrieved Content:
%s

Guidelines:
1. Write a cohesive, well-structured section that thoroughly covers the topic based on the retrieved content
2. Use appropriate academic language and maintain a scholarly tone
3. Properly cite sources within the text using the format [X], where X corresponds to the chunk Reference ID from the retrieved content
4. Synthesize information rather than merely summarizing individual sources
5. Highlight consensus views as well as contrasting perspectives in the field
6. Maintain appropriate length for a section in a comprehensive literature review (approximately 800-1200 words)
7. Ensure logical flow within the section

Your response should be a polished section ready for inclusion in the final literature review.
`

const compileReviewPrompt = `
You are a senior academic researcher and you have deeply researched about the topic from several aspects.
Now you need to complete the final paper with your research drafts that are given in the following Draft Sections.
Meanwhile you are specializing in polishing scholarly literature reviews.

Guidelines for Improvement:
1. Ensure logical flow and coherence throughout the entire document
2. Eliminate any redundancies or repetitive content
3. Some conclusions in a section are not neccessay, as we will provide a conculusion in the end of the review
4. Check for and correct any logical inconsistencies or structural problems
5. Improve transitions between sections
6. Enhance clarity and precision of language
7. Maintain consistent academic tone and style throughout
8. Ensure appropriate depth of analysis in each section
9. Do not change the citations format [X] and X value, where X corresponds to the chunk Reference ID from the retrieved content
10. Keep the overall content and organization, making only improvements to quality rather than substantive changes
11. Keep every "## <section>" heading line exactly as it appears in the draft

Review the complete draft of this literature review and improve it for publication quality.

Reaserch Topic: %s

Draft Sections for the Literature Review:
%s

Your response should be the complete, polished literature review ready for submission.
`

const languageDetectPrompt = `
Determine the primary language of the following text. Return only the language code:
- "en" for English
- "zh" for Chinese
- "mixed" if the text contains a significant amount of both languages

Text: %s

Language code:
`

const abstractConclusionPrompt = `
You are an expert academic researcher who specializes in writing research papers and literature reviews.
Based on the provided literature review content, please generate two distinct sections:

1. Abstract:
- Write a concise summary (200-300 words) of the entire review
- Include the main research topic, key findings, and significant conclusions
- Follow standard academic abstract format
- Focus on the most important aspects of the review

2. Conclusion:
- Write a comprehensive conclusion (300-400 words) that synthesizes the main points
- Highlight the key contributions and implications of the research
- Discuss potential future research directions
- Maintain academic tone and style

Research Topic: %s

Literature Review Content:
%s

Please format your response as follows:

ABSTRACT:
[Your abstract text here]

CONCLUSION:
[Your conclusion text here]
`
