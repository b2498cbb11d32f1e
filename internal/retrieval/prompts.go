package retrieval

const routeCollectionsPrompt = `You are routing an academic search query to vector collections.

Given the query and the collection descriptions below, select every collection that is likely to contain relevant content.

Query: %s

Collections:
%s

Respond with a JSON array of collection names, e.g. ["collection_a", "collection_b"]. Output the JSON array directly without any comments or explanations.`

const rerankPrompt = `Based on the query and the retrieved chunk, determine whether the chunk is helpful in addressing the query. Respond with only "YES" or "NO".

Query: %s
Retrieved Chunk: <chunk>%s</chunk>

Is the chunk helpful for addressing the query?`

const cleanTextPrompt = `Clean and optimize the following academic text by following these specific rules:

1. Remove (do not complete) incomplete sentences at the beginning or end of the text
2. Remove references or citations in the format of: author(s) + title + journal + year + DOI/URL
3. Remove any meaningless text, formatting artifacts, or irrelevant metadata
4. Maintain the academic integrity and completeness of the meaningful content
5. Keep complete paragraphs and well-formed sentences
6. Do not add any new content or complete partial ideas

Return only the cleaned text without any explanations or markup.

Text: %s`

const rewriteQueryPrompt = `You are an academic research assistant tasked with planning a comprehensive literature review on a specific topic.

For the given topic, you have already generated a search query for a specific section.
But with this query, we can search few relevant content from the vector database.
It may be due to the query is not specific enough, or the query is not related enough to the topic.
Please rewrite the query to make it more specific and related to the topic.

Topic: %s
Section: %s
Original Query: %s

Please output the rewritten search query directly.`
