package translator

import "fmt"

const (
	viewSystemPrompt   = "You are a highly experienced SAP HANA and Snowflake expert."
	sqlSystemPrompt    = "You are a highly experienced SQL conversion expert."
	jsonOutputContract = "Respond in strict JSON only, exactly in the form {\"sql\": \"<converted Snowflake SQL>\"}."
)

type prompt struct {
	system      string
	user        string
	maxTokens   int
	temperature float64
}

func viewPrompt(content []byte) prompt {
	return prompt{
		system: viewSystemPrompt,
		user: fmt.Sprintf(`Convert the SAP HANA calculation view below (XML) into a Snowflake SQL stored procedure.
Create a view for every projection node and a separate CTE for every join, aggregation and rank node,
keeping the node order and dependencies of the XML. Alias mapped columns whose source and target
names differ, replace HANA-only functions with Snowflake equivalents, drop the defaultClient and
defaultLanguage scenario attributes, and return the final result set with RETURN TABLE(res).

Input SAP HANA XML:
%s

%s`, content, jsonOutputContract),
		maxTokens:   4128,
		temperature: 0.5,
	}
}

func schemaPrompt(content []byte) prompt {
	return prompt{
		system: sqlSystemPrompt,
		user: fmt.Sprintf(`You are an expert in both SAP HANA and Snowflake.
Convert the SAP HANA table schema below into an equivalent Snowflake table schema, keeping its
structure and using valid Snowflake syntax.

SAP HANA table schema:
%s

%s`, content, jsonOutputContract),
		maxTokens:   1024,
		temperature: 0,
	}
}

func functionPrompt(content []byte) prompt {
	return prompt{
		system: sqlSystemPrompt,
		user: fmt.Sprintf(`You are an expert in both SAP HANA and Snowflake.
Decide whether the input is a SAP HANA function or procedure and convert it into the Snowflake
equivalent written in SQL (CREATE OR REPLACE FUNCTION ... LANGUAGE SQL AS $$ ... $$), replicating its
behaviour exactly and without superfluous semicolons.

Input SAP HANA definition:
%s

Respond with the JSON members only, wrapped in @@ and ## markers and without braces, exactly:
@@"sql": "<converted Snowflake SQL>", "is_func": "<yes|no>"##`, content),
		maxTokens:   1024,
		temperature: 0,
	}
}
