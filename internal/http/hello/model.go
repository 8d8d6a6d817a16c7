package hello

// Greeting is the fixed body served at the root path.
const Greeting = "Hello, World!"

// ContentType matches what the greeting has always been served as.
const ContentType = "text/html; charset=utf-8"
