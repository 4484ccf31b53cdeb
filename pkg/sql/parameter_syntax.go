package sql

/*
Query Template Syntax

# Overview

A query definition's SQL is a single SELECT statement with two kinds of
markers:

	:name          a bind parameter, always sent to the driver as a bound value
	--criteriaName a criteria placeholder, replaced by a SQL fragment or removed

Neither marker is ever interpolated with caller input. Bind parameters become
driver placeholders; criteria placeholders are replaced only with fragments
declared in the definition.

# Bind Parameters

Bind parameter names must start with a letter or underscore followed by
letters, digits or underscores. They are recognised outside string literals,
quoted identifiers and comments. PostgreSQL casts are not markers:

	SELECT hire_date::date FROM employees WHERE id = :id   -- one parameter: id
	SELECT '10:30' AS t FROM dual WHERE x = :x              -- one parameter: x

Before execution the markers are rewritten for the target driver:

	postgres   :id → $1     (repeated names reuse the ordinal)
	sqlserver  :id → @p1    (repeated names reuse the ordinal)
	mysql      :id → ?      (repeated names repeat the value)
	sqlite     :id → ?
	oracle     :id → :id    (bound with sql.Named)

# Criteria Placeholders

A criteria placeholder is two dashes immediately followed by the criteria
name. A normal comment has a space after the dashes and is left alone:

	SELECT e.employee_id, e.last_name, e.salary
	FROM employees e
	WHERE 1=1
	  --departmentFilter
	  --minSalaryFilter
	ORDER BY e.employee_id

	-- criteria
	departmentFilter: AND e.department_id = :departmentId
	minSalaryFilter:  AND e.salary >= :minSalary

When a criteria applies, its fragment replaces the placeholder and its bind
parameters join the execution's parameter map. When it does not apply the
placeholder is removed. Placeholders left over after all criteria are
processed are stripped, then CleanupSQL repairs the clause structure, so
templates may also be written without the "1=1" guard:

	WHERE --departmentFilter ORDER BY id   → ORDER BY id
	WHERE AND e.salary >= :minSalary       → WHERE e.salary >= :minSalary

# Engine-generated Parameters

The builder generates its own bind parameters for filters and pagination.
Definitions must not declare parameters with these names:

	filter_<attribute>_<n>          single-value filter
	filter_<attribute>_<n>_1, _2    BETWEEN bounds
	filter_<attribute>_<n>_<i>      IN / NOT_IN list elements
	page_limit, page_offset         standard and offset/fetch pagination
	page_end                        row-number pagination upper bound
*/
