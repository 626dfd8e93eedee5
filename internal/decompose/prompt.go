package decompose

// systemPrompt frames the responder as a planner.
const systemPrompt = `You are a task decomposition specialist. You turn a complex goal into a short,
ordered sequence of concrete steps that can each be carried out on its own.
Think the goal through once before answering; do not elaborate each step separately.`

// decompositionPrompt is the prompt template for task decomposition.
// The %s verbs are the goal and the steps marker.
const decompositionPrompt = `Break this goal into an ordered list of executable steps.

Goal:
%s

Requirements:
- Steps run strictly one after another, in the order you list them.
- Each step must be small enough to finish in one attempt.
- Later steps may use the results of earlier steps.
- Keep every description on a single line.

Answer in exactly this format, starting with the heading:

%s
1. **<short step title>**: <what to do and the key points>
2. **<short step title>**: <what to do and the key points>
3. **<short step title>**: <what to do and the key points>
`

// directAnswerSystemPrompt is used for requests routed as simple.
const directAnswerSystemPrompt = `You are a helpful assistant. Answer the question directly and concisely.`
